package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
	"github.com/farbod-bigdeli/banking-2pc/pkg/transport"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		createAccount()
	case "get":
		getAccount()
	case "list":
		listAccounts()
	case "outcome":
		txOutcome()
	case "health":
		healthCheck()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("bankctl - banking 2PC cluster tool")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  bankctl create --coordinator=<addr> --name=<name> --email=<email> --balance=<amount>")
	fmt.Println("      Create an account through the 2PC coordinator")
	fmt.Println("")
	fmt.Println("  bankctl get --node=<addr> --id=<accountID>")
	fmt.Println("      Fetch a committed account from a participant")
	fmt.Println("")
	fmt.Println("  bankctl list --node=<addr>")
	fmt.Println("      List committed accounts on a participant")
	fmt.Println("")
	fmt.Println("  bankctl outcome --coordinator=<addr> --tx=<transactionID>")
	fmt.Println("      Look up the recorded decision for a transaction")
	fmt.Println("")
	fmt.Println("  bankctl health --addr=<addr>")
	fmt.Println("      Check health of a node")
}

func createAccount() {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	coordAddr := fs.String("coordinator", "localhost:5001", "Coordinator address")
	name := fs.String("name", "", "Account holder name")
	email := fs.String("email", "", "Account email (unique)")
	balance := fs.Float64("balance", 0, "Initial balance")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	fs.Parse(os.Args[2:])

	if *email == "" {
		fmt.Println("Error: --email is required")
		os.Exit(1)
	}

	client := transport.NewClient(*timeout)
	resp, err := client.CreateAccount(context.Background(), *coordAddr, &protocol.CreateAccountRequest{
		Name:           *name,
		Email:          *email,
		InitialBalance: *balance,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	printJSON(resp)
	if !resp.Success {
		os.Exit(1)
	}
}

func getAccount() {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	nodeAddr := fs.String("node", "localhost:5004", "Participant address")
	accountID := fs.String("id", "", "Account id")
	fs.Parse(os.Args[2:])

	if *accountID == "" {
		fmt.Println("Error: --id is required")
		os.Exit(1)
	}

	resp, err := transport.DefaultClient().GetAccount(context.Background(), *nodeAddr, *accountID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	printJSON(resp)
}

func listAccounts() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	nodeAddr := fs.String("node", "localhost:5004", "Participant address")
	fs.Parse(os.Args[2:])

	resp, err := transport.DefaultClient().ListAccounts(context.Background(), *nodeAddr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	printJSON(resp)
}

func txOutcome() {
	fs := flag.NewFlagSet("outcome", flag.ExitOnError)
	coordAddr := fs.String("coordinator", "localhost:5001", "Coordinator address")
	txID := fs.String("tx", "", "Transaction id")
	fs.Parse(os.Args[2:])

	if *txID == "" {
		fmt.Println("Error: --tx is required")
		os.Exit(1)
	}

	resp, err := transport.DefaultClient().TxOutcome(context.Background(), *coordAddr, *txID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	printJSON(resp)
}

func healthCheck() {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "localhost:5004", "Node address")
	fs.Parse(os.Args[2:])

	resp, err := transport.DefaultClient().HealthCheck(context.Background(), *addr)
	if err != nil {
		fmt.Printf("Node %s is DOWN: %v\n", *addr, err)
		os.Exit(1)
	}

	fmt.Printf("Node %s is %s (%s)\n", *addr, resp.Status, resp.Role)
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
