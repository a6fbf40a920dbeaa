package vaulterrors

import (
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code       uint16
	Name       string
	HTTPStatus int
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	HTTPStatus() int
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) HTTPStatus() int {
	return e.code.HTTPStatus
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

type SafeMetadata struct {
	SafeId uint64 `json:"safe_id"`
}

type CallerMetadata struct {
	SafeId uint64 `json:"safe_id"`
	Caller string `json:"caller"`
}

type AmountMetadata struct {
	Required string `json:"required"`
	Got      string `json:"got"`
}

type ThresholdMetadata struct {
	SafeId        uint64 `json:"safe_id"`
	ApprovalCount uint64 `json:"approval_count"`
	Required      uint64 `json:"required"`
}

type ExpiryMetadata struct {
	SafeId uint64 `json:"safe_id"`
	Expiry int64  `json:"expiry"`
	Now    int64  `json:"now"`
}

type TransferMetadata struct {
	To     string `json:"to"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", http.StatusInternalServerError}

var UNAUTHORIZED = Code[CallerMetadata]{1, "UNAUTHORIZED", http.StatusForbidden}

var SAFE_NOT_FOUND = Code[SafeMetadata]{2, "SAFE_NOT_FOUND", http.StatusNotFound}

var ALREADY_TERMINAL = Code[SafeMetadata]{3, "ALREADY_TERMINAL", http.StatusConflict}

var NOT_EXPIRED = Code[ExpiryMetadata]{4, "NOT_EXPIRED", http.StatusUnprocessableEntity}

var INVALID_CONFIGURATION = Code[map[string]any]{
	5,
	"INVALID_CONFIGURATION",
	http.StatusBadRequest,
}

var DUPLICATE_APPROVAL = Code[CallerMetadata]{6, "DUPLICATE_APPROVAL", http.StatusConflict}

var THRESHOLD_ALREADY_MET = Code[ThresholdMetadata]{
	7,
	"THRESHOLD_ALREADY_MET",
	http.StatusConflict,
}

var INSUFFICIENT_FUNDS = Code[AmountMetadata]{
	8,
	"INSUFFICIENT_FUNDS",
	http.StatusUnprocessableEntity,
}

var INSUFFICIENT_ALLOWANCE = Code[AmountMetadata]{
	9,
	"INSUFFICIENT_ALLOWANCE",
	http.StatusUnprocessableEntity,
}

var TRANSFER_FAILED = Code[TransferMetadata]{10, "TRANSFER_FAILED", http.StatusBadGateway}

var SERVICE_PAUSED = Code[any]{11, "SERVICE_PAUSED", http.StatusServiceUnavailable}
