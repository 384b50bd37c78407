/*
Package fbsmslib sends and reads SMS through the web interface of a
FRITZ!Box style home router.

Overview:

A Client logs in with the router's PBKDF2 challenge-response scheme,
answers the TOTP second factor the router asks for before it sends an SMS,
and keeps the resulting session until the router stops accepting it. A
local token bucket limits how many messages a Client may send, by default
10 per hour.

A Client is synchronous and not safe for concurrent use. Server wraps one
Client in an HTTP relay that serialises access.

*/

package fbsmslib
