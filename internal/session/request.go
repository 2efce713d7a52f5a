package session

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// UserData is the optional questionnaire sent along with the photo. Empty
// fields are omitted, so the zero value is sent as {}.
type UserData struct {
	Genero            string `json:"genero,omitempty" yaml:"genero"`
	Edad              string `json:"edad,omitempty" yaml:"edad"`
	Estatura          string `json:"estatura,omitempty" yaml:"estatura"`
	FormaMandibula    string `json:"formaMandibula,omitempty" yaml:"forma_mandibula"`
	Frente            string `json:"frente,omitempty" yaml:"frente"`
	NarizPuente       string `json:"narizPuente,omitempty" yaml:"nariz_puente"`
	TonoPiel          string `json:"tonoPiel,omitempty" yaml:"tono_piel"`
	ColorCabello      string `json:"colorCabello,omitempty" yaml:"color_cabello"`
	ColorOjos         string `json:"colorOjos,omitempty" yaml:"color_ojos"`
	UsoPrincipal      string `json:"usoPrincipal,omitempty" yaml:"uso_principal"`
	EstiloDeseado     string `json:"estiloDeseado,omitempty" yaml:"estilo_deseado"`
	MaterialPreferido string `json:"materialPreferido,omitempty" yaml:"material_preferido"`
	Exclusiones       string `json:"exclusiones,omitempty" yaml:"exclusiones"`
}

// Request is the body of the analysis POST.
type Request struct {
	Image    string   `json:"image"` // data:image/...;base64,... URL
	UserData UserData `json:"userData"`
}

// defaultFailureMessage is shown when an error response carries no message.
const defaultFailureMessage = "Error en el análisis"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// HTTPStatusError is a non-success response to the analysis request.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("analysis request failed (status: %d): %s", e.StatusCode, e.Message)
}

// newHTTPStatusError reads the {error} body of a failed response.
func newHTTPStatusError(status int, body io.Reader) *HTTPStatusError {
	herr := &HTTPStatusError{StatusCode: status, Message: defaultFailureMessage}
	if body == nil {
		return herr
	}

	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return herr
	}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && strings.TrimSpace(payload.Error) != "" {
		herr.Message = payload.Error
	} else if text := http.StatusText(status); text != "" {
		herr.Message = fmt.Sprintf("%s: %s", defaultFailureMessage, text)
	}
	return herr
}
