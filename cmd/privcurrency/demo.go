package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/certen/private-currency/pkg/consensus"
	"github.com/certen/private-currency/pkg/secretstate"
	"github.com/certen/private-currency/pkg/storage"
	"github.com/certen/private-currency/pkg/txn"
)

// newDemoCmd spins up a handful of in-memory clients against a running
// node's HTTP API and drives random transfers between them, the same way
// the reference implementation's multi-client example simulates real
// client behavior end to end.
func newDemoCmd() *cobra.Command {
	var apiAddr string
	var clientCount, rounds int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Create several wallets and exchange random transfers against a running node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(apiAddr, clientCount, rounds)
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", "http://127.0.0.1:8080", "node HTTP API base address")
	cmd.Flags().IntVar(&clientCount, "clients", 5, "number of simulated wallets")
	cmd.Flags().IntVar(&rounds, "rounds", 10, "number of transfer rounds")
	return cmd
}

func runDemo(apiAddr string, clientCount, rounds int) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	clients := make([]*secretstate.SecretState, clientCount)
	for i := range clients {
		s, err := secretstate.New()
		if err != nil {
			return err
		}
		tx := s.CreateWallet()
		envelope, err := consensus.EncodeCreateWallet(tx)
		if err != nil {
			return err
		}
		if err := postEnvelope(apiAddr, envelope); err != nil {
			return fmt.Errorf("demo: create client %d: %w", i, err)
		}
		s.Initialize(storage.InitialBalance)
		clients[i] = s
		fmt.Printf("client %d: %s\n", i, s.PublicKey())
	}

	for round := 0; round < rounds; round++ {
		from := rng.Intn(len(clients))
		to := rng.Intn(len(clients))
		for to == from {
			to = rng.Intn(len(clients))
		}
		sender, receiver := clients[from], clients[to]

		amount := txn.MinTransferAmount + uint64(rng.Intn(100))
		if sender.Balance() <= amount {
			fmt.Printf("round %d: client %d balance too low, skipping\n", round, from)
			continue
		}

		delay := txn.RollbackDelayMin + uint32(rng.Intn(int(txn.RollbackDelayMax-txn.RollbackDelayMin)))
		transferTx, err := sender.CreateTransfer(amount, receiver.PublicKey(), delay)
		if err != nil {
			return err
		}
		envelope, err := consensus.EncodeTransfer(transferTx)
		if err != nil {
			return err
		}
		if err := postEnvelope(apiAddr, envelope); err != nil {
			return fmt.Errorf("demo: round %d transfer: %w", round, err)
		}

		verified, ok := receiver.VerifyTransfer(transferTx)
		if !ok {
			return fmt.Errorf("demo: round %d: receiver could not decrypt its own transfer", round)
		}
		acceptEnvelope, err := consensus.EncodeAccept(verified.Accept)
		if err != nil {
			return err
		}
		if err := postEnvelope(apiAddr, acceptEnvelope); err != nil {
			return fmt.Errorf("demo: round %d accept: %w", round, err)
		}

		if err := sender.Transfer(transferTx); err != nil {
			return err
		}
		if err := receiver.Transfer(transferTx); err != nil {
			return err
		}
		fmt.Printf("round %d: client %d -> client %d, amount %d\n", round, from, to, amount)
	}

	for i, c := range clients {
		fmt.Printf("client %d final balance: %d\n", i, c.Balance())
	}
	return nil
}
