// Command unitapp runs unitgo applications and the dev daemon that hosts
// them without an NGINX Unit router.
//
// `unitapp serve` runs the demo application on unit contexts attached to the
// router through libunit (build with -tags libunit). `unitapp dev` runs the
// same application behind the in-process loopback daemon with an HTTP front,
// a request journal and log streaming. The remaining commands talk to a
// running dev daemon over its control socket.
package main
