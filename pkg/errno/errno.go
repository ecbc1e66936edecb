package errno

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Business Errors (20000+)
var (
	ErrSafeNotFound        = Errno{Code: 20301, Message: "Safe account not found"}
	ErrTransactionNotFound = Errno{Code: 20302, Message: "Transaction not found"}
	ErrNotAnOwner          = Errno{Code: 20303, Message: "Signer is not an owner of this Safe"}
	ErrDuplicateSigner     = Errno{Code: 20304, Message: "Signer already confirmed this transaction"}
	ErrHashMismatch        = Errno{Code: 20305, Message: "Submitted hash does not match recomputed transaction hash"}
	ErrBadSignature        = Errno{Code: 20306, Message: "Signature is malformed or does not recover to the sender"}
	ErrBelowQuorum         = Errno{Code: 20307, Message: "Not enough confirmations for execution"}
	ErrStaleNonce          = Errno{Code: 20308, Message: "Transaction nonce is behind the Safe's current nonce"}
)
