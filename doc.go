// Package express runs a signed telemetry feed server.
//
// Every cycle the server samples a value, folds it into a rolling average,
// and publishes two signed feed products: the value with its average, and
// the current UTC hour epoch. Each product is written to a "latest" file,
// appended to a time-bucketed archive together with the public key that
// signed it, and served over HTTP.
//
// # Basic Usage
//
// Create a service and run it until the context is cancelled:
//
//	svc, err := express.NewService(
//	    express.WithStaticDir("static"),
//	    express.WithArchiveDir("archive"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	err = svc.Run(ctx, ":8001")
//
// # Signing
//
// Data blocks are serialized as RFC 8785 canonical JSON. By default the hex
// text of that JSON is the signed byte sequence and appears verbatim in the
// payload field, so a verifier checks the payload exactly as published.
//
// # Verification
//
// Verify and VerifyCBOR check a signature with a raw or CBOR-wrapped public
// key. Malformed input returns an error wrapping ErrMalformedInput; a well
// formed signature that does not match returns a result with Valid false.
//
//	res, err := express.Verify(pkey, signature, payload)
//
// CheckArchive re-verifies every record in an archive file against the key
// stored next to it.
package express
