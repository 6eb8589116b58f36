package storefront

import (
	"errors"
)

// Application errors
var (
	// Configuration errors
	ErrConfigNil                  = errors.New("config is nil")
	ErrConfigNotPointer           = errors.New("config must be a pointer")
	ErrConfigNotStruct            = errors.New("config must be a struct")
	ErrConfigRequiredFieldMissing = errors.New("required field is missing")
	ErrConfigValidationFailed     = errors.New("config validation failed")
	ErrUnsupportedTypeForDefault  = errors.New("unsupported type for default value")
	ErrDefaultValueParseError     = errors.New("failed to parse default value")
	ErrConfigFeederError          = errors.New("config feeder error")

	// Module errors
	ErrModuleAlreadyRegistered = errors.New("module already registered")
	ErrModuleInitFailed        = errors.New("module initialization failed")

	// Application errors
	ErrApplicationNotInitialized = errors.New("application not initialized")
	ErrApplicationAlreadyStarted = errors.New("application already started")
)
