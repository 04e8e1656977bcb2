// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreDocumentGetNotFound     Code = "store.document.get.not_found"
	CodeStoreDocumentInsertConflict  Code = "store.document.insert.conflict"
	CodeStoreDocumentInvalid         Code = "store.document.validate.invalid"
	CodeStoreDatabaseFailure         Code = "store.database.failure"
	CodeStoreBackendUnsupported      Code = "store.backend.unsupported"
	CodeStoreVectorDimensionInvalid  Code = "store.vector.dimension.invalid_input"
	CodeStorePointInvalid            Code = "store.point.validate.invalid"
	CodeStorePatchInvalid            Code = "store.patch.invalid_input"
	CodeStoreSetupFailure            Code = "store.setup.failure"

	CodeEmbeddingContentInvalid   Code = "embedding.content.invalid"
	CodeEmbeddingLoadFailure      Code = "embedding.content.load.failure"
	CodeEmbeddingConfigInvalid    Code = "embedding.config.invalid_value"
	CodeEmbeddingUpstreamFailure  Code = "embedding.provider.upstream.failure"
	CodeEmbeddingResponseInvalid  Code = "embedding.provider.response.invalid"
	CodeEmbeddingProviderNotFound Code = "embedding.provider.not_found"

	CodeCoordinatorInputInvalid        Code = "coordinator.input.invalid"
	CodeCoordinatorDocumentNotFound    Code = "coordinator.document.not_found"
	CodeCoordinatorSourceConflict      Code = "coordinator.source.conflict"
	CodeCoordinatorCreateFailure       Code = "coordinator.create.failure"
	CodeCoordinatorUpdateFailure       Code = "coordinator.update.failure"
	CodeCoordinatorDeleteFailure       Code = "coordinator.delete.failure"
	CodeCoordinatorReadFailure         Code = "coordinator.read.failure"
	CodeCoordinatorCompensationFailure Code = "coordinator.compensation.fatal"
	CodeCoordinatorLaneClosed          Code = "coordinator.lane.closed"
	CodeCoordinatorLanePanic           Code = "coordinator.lane.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretInvalidInput    Code = "secret.input.invalid_input"
	CodeSecretNotFound        Code = "secret.get.not_found"
	CodeSecretStoreFailure    Code = "secret.store.failure"
	CodeSecretDeleteFailure   Code = "secret.delete.failure"
	CodeSecretResolveFailure  Code = "secret.resolve.failure"
	CodeSecretListFailure     Code = "secret.list.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldDocumentID(value int64) Attr {
	return Field("document_id", value)
}

func FieldSourceID(value string) Attr {
	return Field("source_id", value)
}

func FieldOwnerID(value string) Attr {
	return Field("owner_id", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

// CodeOf returns the innermost code in the chain. oops resolves codes from
// the deepest error outwards, so callers that need the outer classification
// should rely on sentinel errors and errors.Is.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsFatal(err error) bool {
	return reason(CodeOf(err)) == "fatal"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
