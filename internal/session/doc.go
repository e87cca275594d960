// Package session manages one MQTT connection to the printer cloud broker.
//
// Each monitored printer gets its own Session so that one printer's
// authentication failure or flapping network cannot affect the others.
//
// This package manages:
//   - TLS connection and authentication (username u_<accountID>, token password)
//   - Reconnection with exponential backoff and jitter, retried indefinitely
//   - Topic subscriptions, restored automatically after every reconnect
//   - An inbound-activity watchdog that degrades and recycles silent connections
//
// # Lifecycle
//
// Sessions move through Idle → Connecting → Connected, dropping back to Idle
// when the connection is lost and to Degraded when the watchdog fires. Stop()
// moves the session to Closed from any state; a closed session never
// reconnects. Reconnection never gives up on its own: a printer may be
// powered off for arbitrary periods and must be picked up when it returns.
//
// # Credentials
//
// The broker password is a cloud access token, looked up through the
// CredentialProvider interface on every connect attempt so refreshed tokens
// are picked up without restarting the session.
//
// # Usage
//
//	sess, err := session.New(session.Options{
//	    Config:      cfg,
//	    Credentials: provider,
//	    Handler:     func(topic string, payload []byte) error { ... },
//	})
//	if err != nil {
//	    return err
//	}
//	sess.Subscribe(wire.Topics{}.Report(serial))
//	sess.Start()
//	defer sess.Stop()
package session
