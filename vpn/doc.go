// Package vpn connects, disconnects, and reads the status of a Mudfish VPN
// client through its web admin page.
//
// # Architecture
//
// The package is organized around one type:
//
//   - Manager: resolves credentials, makes sure the launcher is up, and runs
//     the login strategies in order
//
// Strategies implement LoginStrategy. The default set is the direct HTTP
// login followed by the browser-driven login:
//
//   - direct: a few HTTP requests with a private cookie jar
//   - browser: a headless Chrome session, used only when direct fails
//
// # Connection Flow
//
// A typical connect:
//
//  1. Credentials come from the caller or the vault
//  2. For a local admin page, the launcher is started if it is not running
//     and the admin port is polled until it accepts connections
//  3. The direct strategy signs in, retrying network failures
//  4. On failure the browser strategy signs in once
//  5. The strategy submits the action and re-reads the status page
//  6. Manager returns a ConnectionResult built from the verified state
//
// # Thread Safety
//
// Each call runs to completion before returning. Overlapping calls against
// the same Mudfish instance are not coordinated.
package vpn
