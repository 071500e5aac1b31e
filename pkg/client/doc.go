// Package client is the recordchain Go SDK.
//
// It wraps the ledgerd HTTP API: recording a file's digest, reading the
// chain, and asking the server to re-verify it.
//
// # Recording a file
//
//	c, err := client.New("http://localhost:5000",
//	    client.WithBearerToken(os.Getenv("RECORDCHAIN_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, _ := os.Open("discharge-summary.pdf")
//	defer f.Close()
//
//	res, err := c.Upload(ctx, "discharge-summary.pdf", f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Block.Index, res.Block.Hash)
//
// # Checking integrity
//
//	report, err := c.Verify(ctx)
//	if err == nil && !report.Valid {
//	    log.Printf("chain broken at block %d: %s", *report.Index, report.Error)
//	}
//
// Non-2xx responses are returned as *APIError; a 404 also matches
// ErrNotFound with errors.Is.
package client
