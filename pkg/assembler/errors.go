package assembler

import (
	"github.com/pkg/errors"
)

// GenericErrorText is shown when a turn fails and the server did not say why.
const GenericErrorText = "An error occurred. Please try again. If the problem persists, please contact the site administrator."

var ErrEmptyResponse = errors.New("response contains no assistant message")

// EmptyResponseError is returned by Finalize when the final envelope has no
// assistant message. ServerText is the error the backend sent, if any.
type EmptyResponseError struct {
	ServerText string
}

func (e *EmptyResponseError) Error() string {
	if e.ServerText != "" {
		return ErrEmptyResponse.Error() + ": " + e.ServerText
	}
	return ErrEmptyResponse.Error()
}

func (e *EmptyResponseError) Is(target error) bool {
	return target == ErrEmptyResponse
}

// UserFacingText returns the text of the error message logged for a failed
// turn.
func UserFacingText(err error) string {
	var ere *EmptyResponseError
	if errors.As(err, &ere) && ere.ServerText != "" {
		return ere.ServerText
	}
	return GenericErrorText
}
