package api

import "github.com/0glabs/0g-wallet-rpc/rpcerror"

// General errors
var (
	ErrNil           = NewBusinessError(0, "Success")
	ErrValidation    = NewBusinessError(1, "Invalid parameter")
	ErrInternal      = NewBusinessError(2, "Internal server error")
	ErrChainNotFound = NewBusinessError(3, "Chain not found")
	ErrRPC           = NewBusinessError(4, "RPC error")
	ErrNotCompleted  = NewBusinessError(5, "Not completed yet")
)

type BusinessError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func NewBusinessError(code int, message string) *BusinessError {
	return &BusinessError{code, message, nil}
}

func NewBusinessErrorWithData(code int, message string, data interface{}) *BusinessError {
	return &BusinessError{code, message, data}
}

func (err *BusinessError) Error() string {
	return err.Message
}

func (be *BusinessError) WithData(data interface{}) *BusinessError {
	return NewBusinessErrorWithData(be.Code, be.Message, data)
}

// RPCErrorData is the business error data of a classified RPC error.
type RPCErrorData struct {
	Kind      string `json:"kind"`
	Code      int    `json:"code,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`

	// OnChain is true if the node rejected the transaction itself.
	OnChain bool `json:"onChain"`
}

// NewRPCError converts a classified RPC error into business error.
func NewRPCError(err *rpcerror.ClassifiedError) *BusinessError {
	return ErrRPC.WithData(RPCErrorData{
		Kind:      err.Kind.String(),
		Code:      err.Code,
		Message:   err.Message,
		Retryable: err.Kind.IsRetryable(),
		OnChain:   err.Kind.IsOnChain(),
	})
}
