// Package mqtt links the engine to show equipment over an MQTT broker.
//
// Lighting desks, media servers and sensors publish values to
// cuelogic/state/{module}/{value}; MQTT modules turn them into live
// parameters that conditions watch. Consequences publish commands to
// cuelogic/command/{module}/{command}, and action events go out on
// cuelogic/event/{action}/{event}.
//
// The engine's presence is kept on the retained cuelogic/system/status
// topic, with a Last Will covering crashes:
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT,
//	    mqtt.WithLogger(log),
//	    mqtt.WithIdentity(cfg.Engine.Project, cfg.Site.ID))
package mqtt
