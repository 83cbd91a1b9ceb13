package view

// Level of a toast.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient toast.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Messages shown after user-initiated actions.
const (
	MsgTransactionCreated      = "Transação criada!"
	MsgTransactionCreateFailed = "Erro ao criar a transação"
	MsgTransactionDeleted      = "Transação excluida com sucesso!"
	MsgTransactionDeleteFailed = "Erro ao excluir a transação"
	MsgInvalidCredentials      = "Credenciais inválidas."
	MsgSessionExpired          = "Sua sessão expirou. Faça login novamente."
	MsgReadFailed              = "Não foi possível carregar os dados"
)

// Success builds a success toast.
func Success(msg string) Notification {
	return Notification{Level: LevelSuccess, Message: msg}
}

// Failure builds an error toast.
func Failure(msg string) Notification {
	return Notification{Level: LevelError, Message: msg}
}
