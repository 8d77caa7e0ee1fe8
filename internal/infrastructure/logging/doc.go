// Package logging builds the slog logger every component writes to.
//
// Records carry service=cuelogic and the build version; Component adds a
// component field so one engine's output can be filtered per subsystem:
//
//	log := logging.New(cfg.Logging, version)
//	eng, err := engine.New(engine.Deps{Logger: log.Component("engine")})
package logging
