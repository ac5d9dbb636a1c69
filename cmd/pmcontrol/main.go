//go:build cgo

// Command pmcontrol builds the control module as a C shared library:
//
//	go build -buildmode=c-shared -o libpmcontrol.so ./cmd/pmcontrol
//
// The host calls CreatePMModuleInstance to receive start, stop and option
// entry points, and ReleasePMModuleInstance to clear them.
package main

/*
#include "module.h"
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/rs/zerolog/log"

	"github.com/carlosprados/pmcontrol/internal/config"
	"github.com/carlosprados/pmcontrol/internal/control"
	"github.com/carlosprados/pmcontrol/internal/logging"
	"github.com/carlosprados/pmcontrol/internal/supervisor"
)

// Upper bound for option payloads copied from the host.
const maxOptionSize = 4096

var (
	once   sync.Once
	mu     sync.Mutex
	module control.ModuleContext
	plugin *control.Plugin
)

// instance lazily builds the plugin, configured from PMCONTROL_* variables.
func instance() *control.Plugin {
	once.Do(func() {
		s, err := config.Load("")
		if err != nil {
			s = config.Defaults()
		}
		if _, lerr := logging.Setup(logging.Options{Level: s.LogLevel, File: s.LogFile}); lerr != nil {
			log.Warn().Err(lerr).Msg("logging setup failed, using defaults")
		}
		if err != nil {
			log.Warn().Err(err).Msg("ignoring invalid settings from environment")
		}
		var opts []control.Option
		if d, derr := s.Delay(); derr == nil {
			opts = append(opts, control.WithSupervisorOptions(supervisor.WithRestartDelay(d)))
		}
		plugin = control.New(opts...)
	})
	return plugin
}

//export CreatePMModuleInstance
func CreatePMModuleInstance(ctx *C.PM_MODULE_CTX_T) C.int {
	if ctx == nil {
		return C.int(control.InvalidParam)
	}
	mu.Lock()
	defer mu.Unlock()
	if res := control.CreateModuleInstance(instance(), &module); res != control.Success {
		return C.int(res)
	}
	C.pmFillModuleContext(ctx)
	return C.int(control.Success)
}

//export ReleasePMModuleInstance
func ReleasePMModuleInstance(ctx *C.PM_MODULE_CTX_T) C.int {
	if ctx == nil {
		return C.int(control.InvalidParam)
	}
	mu.Lock()
	defer mu.Unlock()
	control.ReleaseModuleInstance(&module)
	C.pmClearModuleContext(ctx)
	return C.int(control.Success)
}

//export goPmStart
func goPmStart(basePath, dataPath, configPath *C.char) C.int {
	mu.Lock()
	start := module.FpStart
	mu.Unlock()
	if start == nil {
		return C.int(control.GeneralError)
	}
	return C.int(start(C.GoString(basePath), C.GoString(dataPath), C.GoString(configPath)))
}

//export goPmStop
func goPmStop() C.int {
	mu.Lock()
	stop := module.FpStop
	mu.Unlock()
	if stop == nil {
		return C.int(control.NotStarted)
	}
	return C.int(stop())
}

//export goPmSetOption
func goPmSetOption(id C.int, value unsafe.Pointer, size C.size_t) C.int {
	mu.Lock()
	set := module.FpSetOption
	mu.Unlock()
	if set == nil {
		return C.int(control.GeneralError)
	}
	if size > maxOptionSize {
		return C.int(control.InvalidParam)
	}
	var b []byte
	if value != nil && size > 0 {
		b = C.GoBytes(value, C.int(size))
	}
	return C.int(set(control.OptionID(id), b))
}

func main() {}
