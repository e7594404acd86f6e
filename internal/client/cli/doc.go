// Package cli implements the uploadvault command-line client.
//
// Commands:
//
//	ping                    check that the server answers
//	upload <path>           register, upload and confirm a file
//	confirm <id>            confirm a file uploaded out of band
//	info <id>               print file metadata
//	download <id> <dest>    fetch an uploaded file
//	rm <id>                 remove a file and its object
//	ls                      list uploads made from this machine
//	refresh                 update pending entries from the server
//
// Uploads are tracked in a local SQLite history (see -history); rm drops the
// entry and refresh marks entries the server no longer knows as gone.
package cli
