// Command amparo-keytool is the off-platform half of the portal's sealed-box
// scheme. Company operators run it outside the platform to generate their
// keypair, check a public key fingerprint against what the portal displays,
// and decrypt sealed request payloads exported from triage. The private key
// never touches the server.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"amparo.org/internal/sealed"
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: amparo-keytool [generate|fingerprint|decrypt]")
		fmt.Fprintln(os.Stderr, "  generate                       print a new keypair")
		fmt.Fprintln(os.Stderr, "  fingerprint <public-key>       print the key fingerprint")
		fmt.Fprintln(os.Stderr, "  decrypt <private-key>          decrypt a base64 blob from stdin")
	}
	flag.Parse()

	switch flag.Arg(0) {
	case "generate":
		kp, err := sealed.GenerateKeypair()
		if err != nil {
			log.Fatalf("generate: %v", err)
		}
		fmt.Printf("public key:  %s\n", kp.PublicKey)
		fmt.Printf("fingerprint: %s\n", sealed.Fingerprint(kp.PublicKey))
		fmt.Printf("private key: %s\n", kp.PrivateKey)
		fmt.Fprintln(os.Stderr, "store the private key in a password manager; it cannot be recovered")
	case "fingerprint":
		publicKey := strings.TrimSpace(flag.Arg(1))
		if publicKey == "" {
			flag.Usage()
			os.Exit(2)
		}
		if err := sealed.ParsePublicKey(publicKey); err != nil {
			log.Fatalf("fingerprint: %v", err)
		}
		fmt.Println(sealed.Fingerprint(publicKey))
	case "decrypt":
		privateKey := strings.TrimSpace(flag.Arg(1))
		if privateKey == "" {
			flag.Usage()
			os.Exit(2)
		}
		blob, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("read stdin: %v", err)
		}
		plaintext, err := sealed.Decrypt(strings.TrimSpace(string(blob)), privateKey)
		if err != nil {
			log.Fatalf("decrypt: %v", err)
		}
		os.Stdout.Write(plaintext)
	default:
		flag.Usage()
		os.Exit(2)
	}
}
