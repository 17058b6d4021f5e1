// Command admintoken provisions an admin API token. It prints the
// plaintext token once, for the operator, and the bcrypt hash to configure
// as ATTEST_ADMIN_TOKEN_HASH. The plaintext is never stored.
package main

import (
	"fmt"
	"os"

	"attest/pkg/platform/secrets"
)

func main() {
	token, err := secrets.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}
	hash, err := secrets.Hash(token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("token: %s\n", token)
	fmt.Printf("ATTEST_ADMIN_TOKEN_HASH=%s\n", hash)
}
