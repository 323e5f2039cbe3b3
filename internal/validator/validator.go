// FilePath: internal/validator/validator.go
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pcdvisual/telemetry-hub/internal/models"
)

// Issue describes a single rejected field.
type Issue struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ValidationError is returned for any rejected payload, whether it failed to
// parse or failed a schema check.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path == "" {
			parts = append(parts, is.Reason)
			continue
		}
		parts = append(parts, is.Path+": "+is.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(path, reason string) *ValidationError {
	return &ValidationError{Issues: []Issue{{Path: path, Reason: reason}}}
}

// IsValidationError reports whether err carries validation issues.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type factory func() models.DeviceMessage

var schemas = map[models.Role]map[string]factory{
	models.RolePai: {
		models.TypeIdentify:     func() models.DeviceMessage { return &models.IdentifyMessage{} },
		models.TypeSensorUpdate: func() models.DeviceMessage { return &models.SensorUpdateMessage{} },
		models.TypeStatus:       func() models.DeviceMessage { return &models.StatusMessage{} },
		models.TypeAlert:        func() models.DeviceMessage { return &models.AlertMessage{} },
		models.TypeHeartbeat:    func() models.DeviceMessage { return &models.HeartbeatMessage{} },
	},
	models.RoleCamera: {
		models.TypeIdentify:  func() models.DeviceMessage { return &models.IdentifyMessage{} },
		models.TypeDetection: func() models.DeviceMessage { return &models.DetectionMessage{} },
		models.TypeHeartbeat: func() models.DeviceMessage { return &models.HeartbeatMessage{} },
	},
}

// Validator checks inbound payloads against the per-role message schemas.
// It holds no state besides the cached struct metadata and is safe for
// concurrent use.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// ParseDeviceMessage decodes raw into the message type named by its "type"
// field, provided that type is accepted for role. The returned message is a
// pointer to one of the models message structs.
func (v *Validator) ParseDeviceMessage(role models.Role, raw []byte) (models.DeviceMessage, error) {
	var envelope struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, decodeError(err)
	}
	if envelope.Type == nil {
		return nil, invalid("type", "required")
	}

	roleSchemas, ok := schemas[role]
	if !ok {
		return nil, invalid("", fmt.Sprintf("unknown device role %q", role))
	}
	newMessage, ok := roleSchemas[*envelope.Type]
	if !ok {
		return nil, invalid("type", fmt.Sprintf("unsupported message type %q for role %s", *envelope.Type, role))
	}

	msg := newMessage()
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, decodeError(err)
	}
	if err := v.check(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ParseDescription decodes a manually submitted detection description.
func (v *Validator) ParseDescription(raw []byte) (*models.DetectionMessage, error) {
	msg := &models.DetectionMessage{}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, decodeError(err)
	}
	if err := v.check(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ParseCommandRequest decodes a device command request and checks the command
// name against allowed.
func (v *Validator) ParseCommandRequest(raw []byte, allowed []string) (*models.CommandRequest, error) {
	req := &models.CommandRequest{}
	if err := json.Unmarshal(raw, req); err != nil {
		return nil, decodeError(err)
	}
	if err := v.check(req); err != nil {
		return nil, err
	}

	known := false
	for _, c := range allowed {
		if c == req.Command {
			known = true
			break
		}
	}
	if !known {
		return nil, invalid("command", "must be one of ["+strings.Join(allowed, " ")+"]")
	}

	switch req.Value.(type) {
	case nil, string, float64, bool, map[string]interface{}:
	default:
		return nil, invalid("value", "must be a string, number, boolean or object")
	}
	return req, nil
}

func (v *Validator) check(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalid("", err.Error())
	}
	ve := &ValidationError{Issues: make([]Issue, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		ve.Issues = append(ve.Issues, Issue{Path: fieldPath(fe), Reason: reason(fe)})
	}
	return ve
}

// fieldPath strips the struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "min":
		return "must have length >= " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	default:
		return "failed " + fe.Tag()
	}
}

func decodeError(err error) *ValidationError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return invalid("", fmt.Sprintf("invalid JSON at offset %d: %s", syntaxErr.Offset, syntaxErr.Error()))
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return invalid("", "payload must be a JSON object")
		}
		return invalid(typeErr.Field, "expected "+typeErr.Type.String()+", got "+typeErr.Value)
	default:
		return invalid("", "invalid JSON: "+err.Error())
	}
}
