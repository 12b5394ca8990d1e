// Package filesvc wraps the Files.vc hosting API.
//
// Files.vc is the simpler of the two providers: a single multipart POST
// stores the file and returns its permanent URL immediately, with no
// asynchronous encoding phase to poll afterwards.
package filesvc
