package services

import (
	"errors"
	"fmt"
)

// ServiceError carries the HTTP status and a stable code alongside the
// user-facing message. Two ServiceErrors match under errors.Is when their
// codes are equal.
type ServiceError struct {
	Status  int
	Code    string
	Title   string
	Message string
	cause   error
}

func (e ServiceError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e ServiceError) Unwrap() error {
	return e.cause
}

func (e ServiceError) Is(target error) bool {
	var other ServiceError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code != "" && other.Code == e.Code
}

// WithCause keeps err for logs. The message shown to users is unchanged.
func (e ServiceError) WithCause(err error) ServiceError {
	e.cause = err
	return e
}

// WithMessage replaces the user-facing message, used when a remote error is
// passed through verbatim.
func (e ServiceError) WithMessage(msg string) ServiceError {
	e.Message = msg
	return e
}

var (
	ErrInvalidIdentifier       = ServiceError{Status: 400, Code: "invalid_identifier", Title: "CPF inválido", Message: "O CPF deve conter 11 dígitos válidos."}
	ErrInvalidSecret           = ServiceError{Status: 400, Code: "invalid_secret", Title: "Senha inválida", Message: "Informe a senha."}
	ErrInvalidCredentials      = ServiceError{Status: 401, Code: "invalid_credentials", Title: "Erro no login", Message: "CPF ou senha incorretos."}
	ErrCondominiumLookupFailed = ServiceError{Status: 502, Code: "condominium_lookup_failed", Title: "Erro no login", Message: "Não foi possível carregar o condomínio."}
	ErrUnauthenticated         = ServiceError{Status: 401, Code: "unauthenticated", Title: "Sessão expirada", Message: "Faça login novamente."}
	ErrCodeNotFound            = ServiceError{Status: 404, Code: "code_not_found", Title: "Código não encontrado", Message: "Nenhuma encomenda encontrada com este código."}
	ErrAlreadyPickedUp         = ServiceError{Status: 409, Code: "already_picked_up", Title: "Encomenda já retirada", Message: "Esta encomenda já foi retirada."}
	ErrDescriptionRequired     = ServiceError{Status: 400, Code: "description_required", Title: "Descrição obrigatória", Message: "Descreva a retirada antes de confirmar."}
	ErrPhotoRequired           = ServiceError{Status: 400, Code: "photo_required", Title: "Foto obrigatória", Message: "Tire uma foto da encomenda."}
	ErrResidentNotFound        = ServiceError{Status: 404, Code: "resident_not_found", Title: "Morador não encontrado", Message: "Selecione um morador válido."}
	ErrStorageUploadFailed     = ServiceError{Status: 502, Code: "storage_upload_failed", Title: "Erro ao enviar foto", Message: "Não foi possível salvar a foto."}
	ErrRecordInsertFailed      = ServiceError{Status: 502, Code: "record_insert_failed", Title: "Erro ao registrar", Message: "Não foi possível registrar a encomenda."}
	ErrPickupUpdateFailed      = ServiceError{Status: 502, Code: "pickup_update_failed", Title: "Erro na retirada", Message: "Não foi possível confirmar a retirada."}
	ErrLoginLookupFailed       = ServiceError{Status: 502, Code: "login_lookup_failed", Title: "Erro no login", Message: "Não foi possível verificar as credenciais."}
	ErrNotificationFailed      = ServiceError{Status: 502, Code: "notification_failed", Title: "Erro no envio", Message: "Não foi possível enviar a notificação."}
	ErrCodeSpaceExhausted      = ServiceError{Status: 503, Code: "code_space_exhausted", Title: "Erro ao registrar", Message: "Não foi possível gerar um código de retirada."}
)

// ErrPickupCodeTaken is returned by a DeliveryStore when the insert collides
// with a pending delivery holding the same code.
var ErrPickupCodeTaken = errors.New("pickup code already held by a pending delivery")

func ErrNotFound(msg string) error {
	return ServiceError{Status: 404, Code: "not_found", Title: "Não encontrado", Message: msg}
}

func ErrBadRequest(msg string) error {
	return ServiceError{Status: 400, Code: "bad_request", Title: "Dados inválidos", Message: msg}
}

func ErrForbidden(msg string) error {
	return ServiceError{Status: 403, Code: "forbidden", Title: "Acesso negado", Message: msg}
}

func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
