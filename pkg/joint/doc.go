// Package joint serves collaboratively edited text-mode art documents over
// websockets.
//
// A Registry owns every running Session and the single listening endpoint
// they share. Each Session is reachable at its own path, e.g.
// ws://host:8000/art.bin, and keeps the authoritative copy of one document
// together with its participant roster and chat history.
//
// # Usage
//
//	reg := joint.NewRegistry(joint.DefaultRegistryConfig())
//	path, err := reg.Start(ctx, joint.StartOptions{File: "art.bin", Pass: "s3cret"})
//	if err != nil {
//	    return err
//	}
//	defer reg.CloseAll(context.Background())
//
// # Concurrency
//
// Every Session runs one goroutine that owns its roster, chat history and
// document. Connections, messages, disconnects, timer ticks and queries are
// queued to that goroutine as closures and run one at a time, so events of a
// session are applied and broadcast in the order they were received. Sessions
// share no mutable state with each other.
//
// # Fanout
//
// Messages are relayed with one of three policies: to every identified
// participant except the sender, to every identified participant including
// the sender, or to every participant (web viewers too) except the sender.
// Web viewers are participants that connected without a nick; they receive
// document changes but not presence or chat traffic.
//
// # Persistence
//
// Each session writes its document back to its file on a timer (default
// every five minutes) and once more when it closes. When a snapshot.Store is
// configured, every save is mirrored there and a session whose file is
// missing is restored from its latest snapshot.
package joint
