package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/certen/private-currency/pkg/consensus"
	"github.com/certen/private-currency/pkg/httpapi"
	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/secretstate"
	"github.com/certen/private-currency/pkg/storage"
)

func newClientCmd() *cobra.Command {
	var apiAddr, walletPath string

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Create wallets and move funds against a running node",
	}
	cmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:8080", "node HTTP API base address")
	cmd.PersistentFlags().StringVar(&walletPath, "wallet", "wallet.dat", "local wallet state file")

	cmd.AddCommand(&cobra.Command{
		Use:   "create-wallet",
		Short: "Generate a new local wallet and submit its CreateWallet transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return createWallet(apiAddr, walletPath)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "send <recipient-hex> <amount> <rollback-delay>",
		Short: "Build, submit, and locally apply a Transfer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(apiAddr, walletPath, args[0], args[1], args[2])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "accept <transfer-hash-hex>",
		Short: "Verify and accept a pending incoming transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return accept(apiAddr, walletPath, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the local wallet's perceived balance and the node's view of it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return status(apiAddr, walletPath)
		},
	})
	return cmd
}

func loadWallet(path string) (*secretstate.SecretState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("client: read wallet %s: %w", path, err)
	}
	s := &secretstate.SecretState{}
	if err := s.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("client: decode wallet %s: %w", path, err)
	}
	return s, nil
}

func saveWallet(path string, s *secretstate.SecretState) error {
	raw, err := s.MarshalBinary()
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func postEnvelope(apiAddr string, envelope []byte) error {
	body, err := json.Marshal(httpapi.TransactionRequest{Envelope: hex.EncodeToString(envelope)})
	if err != nil {
		return err
	}
	resp, err := http.Post(apiAddr+httpapi.Base+"/transaction", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("client: submit transaction: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("client: node rejected transaction: %s", string(msg))
	}
	return nil
}

func getWallet(apiAddr string, pk keys.PublicKey) (httpapi.WalletResponse, error) {
	resp, err := http.Get(apiAddr + httpapi.Base + "/wallet?key=" + pk.String())
	if err != nil {
		return httpapi.WalletResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return httpapi.WalletResponse{}, fmt.Errorf("client: %s", string(msg))
	}
	var out httpapi.WalletResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return httpapi.WalletResponse{}, err
	}
	return out, nil
}

func createWallet(apiAddr, walletPath string) error {
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
		return err
	}
	s.Initialize(storage.InitialBalance)
	if err := saveWallet(walletPath, s); err != nil {
		return err
	}
	fmt.Printf("wallet created: %s\n", s.PublicKey())
	return nil
}

func send(apiAddr, walletPath, recipientHex, amountStr, delayStr string) error {
	s, err := loadWallet(walletPath)
	if err != nil {
		return err
	}
	recipient, err := keys.PublicKeyFromHex(recipientHex)
	if err != nil {
		return err
	}
	var amount uint64
	var delay uint32
	if _, err := fmt.Sscanf(amountStr, "%d", &amount); err != nil {
		return fmt.Errorf("client: invalid amount %q", amountStr)
	}
	if _, err := fmt.Sscanf(delayStr, "%d", &delay); err != nil {
		return fmt.Errorf("client: invalid rollback delay %q", delayStr)
	}

	tx, err := s.CreateTransfer(amount, recipient, delay)
	if err != nil {
		return err
	}
	envelope, err := consensus.EncodeTransfer(tx)
	if err != nil {
		return err
	}
	if err := postEnvelope(apiAddr, envelope); err != nil {
		return err
	}
	if err := s.Transfer(tx); err != nil {
		return err
	}
	if err := saveWallet(walletPath, s); err != nil {
		return err
	}
	fmt.Printf("sent %d to %s: %s\n", amount, recipient.String(), tx.Hash())
	return nil
}

func accept(apiAddr, walletPath, transferHashHex string) error {
	s, err := loadWallet(walletPath)
	if err != nil {
		return err
	}

	resp, err := http.Get(apiAddr + httpapi.Base + "/transfer?hash=" + transferHashHex)
	if err != nil {
		return fmt.Errorf("client: fetch transfer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("client: %s", string(msg))
	}
	var tr httpapi.TransferResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return err
	}
	envelope, err := hex.DecodeString(tr.Envelope)
	if err != nil {
		return err
	}
	transfer, err := consensus.DecodeTransfer(envelope)
	if err != nil {
		return err
	}

	verified, ok := s.VerifyTransfer(transfer)
	if !ok {
		return fmt.Errorf("client: transfer is not addressed to this wallet, or could not be decrypted")
	}

	acceptEnvelope, err := consensus.EncodeAccept(verified.Accept)
	if err != nil {
		return err
	}
	if err := postEnvelope(apiAddr, acceptEnvelope); err != nil {
		return err
	}
	if err := s.Transfer(transfer); err != nil {
		return err
	}
	if err := saveWallet(walletPath, s); err != nil {
		return err
	}
	fmt.Printf("accepted %d from %s\n", verified.Value(), transfer.From.String())
	return nil
}

func status(apiAddr, walletPath string) error {
	s, err := loadWallet(walletPath)
	if err != nil {
		return err
	}
	fmt.Printf("local: public_key=%s balance=%d history_len=%d\n", s.PublicKey(), s.Balance(), s.HistoryLen())

	wr, err := getWallet(apiAddr, s.PublicKey())
	if err != nil {
		return err
	}
	fmt.Printf("node:  history_len=%d matches_local=%v\n", wr.Wallet.HistoryLen, s.CorrespondsTo(secretstate.WalletInfo{PublicKey: wr.Wallet.PublicKey, Balance: wr.Wallet.Balance}))
	return nil
}
