package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-assistant/internal/model"
)

// ErrInvalidInput marks a request rejected before any work is done.
var ErrInvalidInput = eris.New("pipeline: invalid input")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateInput checks the request fields. URL reachability is not checked
// here; an unreachable or malformed URL yields a not-found profile instead.
func ValidateInput(in model.SalesInput) error {
	if strings.TrimSpace(in.ProductName) == "" || strings.TrimSpace(in.TargetURL) == "" {
		return eris.Wrap(ErrInvalidInput, "product_name and target_url are required")
	}
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "pipeline: validate input")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return eris.Wrap(ErrInvalidInput, strings.Join(msgs, "; "))
}
