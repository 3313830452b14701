// Package httpapp serves the feedline web front end.
//
// Every browser gets a session cookie and its own session controller. The
// controller holds the displayed page and the token pair; the browser only
// ever sees server-rendered HTML.
//
// # Routes
//
//	GET  /                       the current page, with one-shot notices
//	GET  /auth/{login|register}  switch the auth sub-view
//	POST /login                  log in (throttled per client IP)
//	POST /register               create an account
//	POST /logout                 clear tokens and start over
//	GET  /home                   home feed
//	GET  /me                     own profile
//	GET  /users/{id}             author profile (only for authors on the page)
//	POST /posts                  publish a post
//	POST /posts/{id}/like        toggle like
//	POST /posts/{id}/comments    add a comment
//	POST /users/{id}/follow      toggle follow
//	GET  /healthz                liveness
//
// Every action answers 303 See Other to "/".
package httpapp
