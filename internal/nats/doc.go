// Package nats carries lightnode's commands.
//
// # Architecture
//
//   - Subscriber: the daemon's single ordered receive loop over the command subjects
//   - Publisher: used by the HTTP API and `lightnode send` to issue commands
//   - Server: optional embedded broker (nats.embedded = true)
//   - Bridge: mirrors effect/tone/drop events back onto NATS
//
// # Subjects
//
//	claude.led                        # light commands (configurable)
//	claude.buzzer                     # buzzer commands (configurable)
//	lightnode.events.effect.started   # run launched
//	lightnode.events.effect.finished  # run completed, cancelled or failed
//	lightnode.events.tone             # beep started
//	lightnode.events.dropped          # malformed payload
//
// Core NATS only, no JetStream. A command sent while the daemon is
// disconnected is lost, which is fine for an indicator light.
//
// # Debugging with nats CLI
//
// Watch commands and events:
//
//	nats sub "claude.>"
//	nats sub "lightnode.events.>"
//
// Blink red three times:
//
//	nats pub claude.led '{"r":255,"pattern":"blink","times":3,"interval":0.2}'
//
// Hold green until replaced:
//
//	nats pub claude.led '{"g":255,"duration":0}'
//
// Turn the light off:
//
//	nats pub claude.led '{"pattern":"off"}'
//
// Beep at 2kHz for 200ms:
//
//	nats pub claude.buzzer '{"frequency":2000,"duration":200}'
//
// # Message Formats
//
// LightMessage (claude.led), every field optional:
//
//	{
//	  "r": 0, "g": 0, "b": 0,   // 0-255
//	  "pattern": "solid",       // solid, blink, pulse, rainbow, off
//	  "times": 1,               // 999 or more repeats until replaced
//	  "duration": 5,            // seconds, solid only, 0 holds forever
//	  "interval": 0.3           // seconds per step
//	}
//
// ToneMessage (claude.buzzer):
//
//	{
//	  "frequency": 1000,  // Hz
//	  "duration": 500     // milliseconds
//	}
package nats
