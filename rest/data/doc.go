/*
	Adding to the Connector

	The Connector defines how the REST routes reach users, tasks, runs,
	artifacts and the scrape pipeline. Methods live in files named after the
	resource they serve (user.go, task.go, scrape.go).

	To add to the Connector, add the method signature to the interface in
	data/data.go, then implement it on DBConnector, which works against the
	models, the identity provider and the caches, and on MockConnector, which
	keeps everything in memory for route tests.

	Errors that should reach the client with a specific status are returned
	as gimlet.ErrorResponse values. Everything else is reported as an
	internal error by the routes.
*/
package data
