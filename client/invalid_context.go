package client

import (
	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/message"
)

// Server-only surface. These operations exist on the shared runtime
// contract but are only meaningful inside a silo; on a client every one of
// them fails with ErrInvalidContext.

func (rt *Runtime) invalidContext(op string) error {
	return errors.WrapInvalid(errors.ErrInvalidContext, "Runtime", op, "client context check")
}

// GetSiloStatus is a silo-only operation.
func (rt *Runtime) GetSiloStatus(grain.SiloAddress) (string, error) {
	return "", rt.invalidContext("GetSiloStatus")
}

// DeactivateOnIdle is a silo-only operation.
func (rt *Runtime) DeactivateOnIdle(grain.ID) error {
	return rt.invalidContext("DeactivateOnIdle")
}

// CaptureRuntimeEnvironment is a silo-only operation.
func (rt *Runtime) CaptureRuntimeEnvironment() (map[string]string, error) {
	return nil, rt.invalidContext("CaptureRuntimeEnvironment")
}

// GetInvoker is a silo-only operation: clients never host activations, so
// there is no invoker table to consult.
func (rt *Runtime) GetInvoker(int32) (grain.Invoker, error) {
	return nil, rt.invalidContext("GetInvoker")
}

// ProcessOutgoingMessage is a silo-only interception hook.
func (rt *Runtime) ProcessOutgoingMessage(*message.Message) error {
	return rt.invalidContext("ProcessOutgoingMessage")
}

// ProcessIncomingMessage is a silo-only interception hook.
func (rt *Runtime) ProcessIncomingMessage(*message.Message) error {
	return rt.invalidContext("ProcessIncomingMessage")
}

// ReminderService is a silo-only subsystem.
func (rt *Runtime) ReminderService() (any, error) {
	return nil, rt.invalidContext("ReminderService")
}

// StorageProvider is a silo-only subsystem.
func (rt *Runtime) StorageProvider(string) (any, error) {
	return nil, rt.invalidContext("StorageProvider")
}
