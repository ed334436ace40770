// Package protocol defines the JSON messages a live navigation session
// exchanges over its WebSocket.
//
// The browser owns the real history stack; the server's router treats it as
// a remote navigation source. Every frame is one JSON object with a "type"
// field.
//
// # Client → Server
//
//   - hello{path}: first message; the browser's current location
//   - pop{path}: the user moved through history (back/forward)
//   - ack{seq}: the browser applied push/replace number seq
//   - navigate{route, params, query, replace}: ask a declared route to
//     navigate
//   - ping
//
// # Server → Client
//
//   - welcome{session}: the session was created
//   - push{seq, path} / replace{seq, path}: change the browser location and
//     acknowledge with ack{seq}
//   - state{path, routes}: outcome of a reconciliation pass
//   - error{error}: a request failed; fatal errors close the connection
//   - pong
//
// # Example
//
//	→ {"type":"hello","path":"/posts/5"}
//	← {"type":"welcome","session":"3f0c…"}
//	← {"type":"state","path":"/posts/5","routes":[{"name":"post","template":"/posts/:id","opened":true,"params":{"id":"5"}}]}
//	→ {"type":"navigate","route":"post","params":{"id":"6"}}
//	← {"type":"push","seq":1,"path":"/posts/6"}
//	→ {"type":"ack","seq":1}
//	← {"type":"state","path":"/posts/6","routes":[…]}
package protocol
