package control

// ModuleContext is the function table handed to the host. Init, Deinit and
// ConfigUpdated are part of the table but not provided by this module.
type ModuleContext struct {
	Version int32

	FpInit          func() Result
	FpDeinit        func() Result
	FpStart         func(basePath, dataPath, configPath string) Result
	FpStop          func() Result
	FpSetOption     func(id OptionID, value []byte) Result
	FpConfigUpdated func() Result
}

// CreateModuleInstance fills ctx with p's entry points. The version field
// is not checked.
func CreateModuleInstance(p *Plugin, ctx *ModuleContext) Result {
	if ctx == nil || p == nil {
		return InvalidParam
	}
	ctx.FpInit = nil
	ctx.FpDeinit = nil
	ctx.FpStart = p.Start
	ctx.FpStop = p.Stop
	ctx.FpSetOption = p.SetOption
	ctx.FpConfigUpdated = nil
	return Success
}

// ReleaseModuleInstance clears the entry points set by CreateModuleInstance.
// It does not stop a running agent.
func ReleaseModuleInstance(ctx *ModuleContext) Result {
	if ctx == nil {
		return InvalidParam
	}
	ctx.FpStart = nil
	ctx.FpStop = nil
	ctx.FpSetOption = nil
	return Success
}
