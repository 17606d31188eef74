package errors

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	grpccodes "google.golang.org/grpc/codes"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code     uint16
	Name     string
	GrpcCode grpccodes.Code
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

// Is reports whether err carries this code anywhere in its chain.
func (c Code[MT]) Is(err error) bool {
	var structuredErr Error
	if !errors.As(err, &structuredErr) {
		return false
	}
	return structuredErr.Code() == c.Code && structuredErr.CodeName() == c.Name
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	GrpcCode() grpccodes.Code
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

func (e *ErrorImpl[MT]) GrpcCode() grpccodes.Code {
	return e.code.GrpcCode
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

func (e *ErrorImpl[MT]) Unwrap() error {
	return e.cause
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

type AccountMetadata struct {
	Account string `json:"account"`
}

type OperationIdMetadata struct {
	OperationId     string `json:"operation_id"`
	LastOperationId string `json:"last_operation_id"`
}

type ValueMissingMetadata struct {
	Key string `json:"key"`
}

type SwapMetadata struct {
	Destination string `json:"destination"`
	OperationId string `json:"operation_id"`
}

type AmountMetadata struct {
	Amount string `json:"amount"`
	Fee    string `json:"fee,omitempty"`
}

type MemoMetadata struct {
	Memo string `json:"memo"`
}

type RouteMetadata struct {
	Hop    int    `json:"hop"`
	Reason string `json:"reason"`
}

type GrantMetadata struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type BalanceMetadata struct {
	Token     string `json:"token"`
	Account   string `json:"account"`
	Available string `json:"available"`
	Required  string `json:"required"`
}

type SlippageMetadata struct {
	AmountOut string `json:"amount_out"`
	MinOut    string `json:"min_out"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", grpccodes.Internal}
var INVALID_ARGUMENT = Code[map[string]any]{1, "INVALID_ARGUMENT", grpccodes.InvalidArgument}
var INVALID_AMOUNT = Code[AmountMetadata]{2, "INVALID_AMOUNT", grpccodes.InvalidArgument}
var INVALID_MEMO = Code[MemoMetadata]{3, "INVALID_MEMO", grpccodes.InvalidArgument}
var INVALID_ROUTE = Code[RouteMetadata]{4, "INVALID_ROUTE", grpccodes.InvalidArgument}
var UNAUTHORIZED = Code[AccountMetadata]{5, "UNAUTHORIZED", grpccodes.PermissionDenied}
var NOT_INITIALIZED = Code[any]{6, "NOT_INITIALIZED", grpccodes.FailedPrecondition}
var GRANT_REJECTED = Code[GrantMetadata]{7, "GRANT_REJECTED", grpccodes.PermissionDenied}

var INSUFFICIENT_BALANCE = Code[BalanceMetadata]{
	8,
	"INSUFFICIENT_BALANCE",
	grpccodes.FailedPrecondition,
}

var INSUFFICIENT_ALLOWANCE = Code[BalanceMetadata]{
	9,
	"INSUFFICIENT_ALLOWANCE",
	grpccodes.FailedPrecondition,
}

var SLIPPAGE_EXCEEDED = Code[SlippageMetadata]{
	10,
	"SLIPPAGE_EXCEEDED",
	grpccodes.FailedPrecondition,
}

var ALREADY_INITIALIZED = Code[any]{201, "ALREADY_INITIALIZED", grpccodes.AlreadyExists}
var VALUE_MISSING = Code[ValueMissingMetadata]{502, "VALUE_MISSING", grpccodes.NotFound}

var OPERATION_ID_ALREADY_CONSUMED = Code[OperationIdMetadata]{
	2300,
	"OPERATION_ID_ALREADY_CONSUMED",
	grpccodes.FailedPrecondition,
}

var SWAP_NOT_PERFORMED = Code[SwapMetadata]{
	2301,
	"SWAP_NOT_PERFORMED",
	grpccodes.Aborted,
}

var UNAUTHORIZED_OPERATOR = Code[AccountMetadata]{
	2302,
	"UNAUTHORIZED_OPERATOR",
	grpccodes.PermissionDenied,
}

var UNAUTHORIZED_PROXY_WALLET = Code[AccountMetadata]{
	2303,
	"UNAUTHORIZED_PROXY_WALLET",
	grpccodes.PermissionDenied,
}
