// Command transfer starts a money transfer against a running moneymover API,
// optionally approves it, and polls until the transfer reaches a terminal
// phase.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	var (
		addr      = flag.String("addr", "http://localhost:8080", "base URL of the moneymover API")
		sender    = flag.String("sender", "", "account to debit")
		recipient = flag.String("recipient", "", "account to credit")
		amount    = flag.Int64("amount", 0, "amount to transfer")
		reference = flag.String("reference", "", "reference id (generated by the server if empty)")
		approveAs = flag.String("approve-as", "", "approve the transfer as this manager if it suspends")
		wait      = flag.Duration("wait", 2*time.Minute, "how long to poll for completion")
	)
	flag.Parse()

	if *sender == "" || *recipient == "" || *amount < 1 {
		fmt.Fprintln(os.Stderr, "usage: transfer -sender A -recipient B -amount N [-reference R] [-approve-as M]")
		os.Exit(2)
	}

	referenceID, err := start(*addr, *sender, *recipient, *amount, *reference)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start transfer:", err)
		os.Exit(1)
	}
	fmt.Println("transfer started, reference id:", referenceID)

	deadline := time.Now().Add(*wait)
	approved := false
	for time.Now().Before(deadline) {
		st, err := status(*addr, referenceID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "status:", err)
			os.Exit(1)
		}

		switch st.Phase {
		case "awaiting_approval":
			if *approveAs == "" {
				fmt.Printf("transfer %s is awaiting manager approval; rerun with -approve-as\n", referenceID)
				return
			}
			if !approved {
				if err := approve(*addr, referenceID, *approveAs); err != nil {
					fmt.Fprintln(os.Stderr, "approve:", err)
					os.Exit(1)
				}
				fmt.Println("approved as", *approveAs)
				approved = true
			}
		case "completed":
			fmt.Printf("completed: withdrawal %s, deposit %s\n", st.WithdrawTxID, st.DepositTxID)
			return
		case "failed":
			fmt.Fprintln(os.Stderr, "transfer failed:", st.FailureReason)
			os.Exit(1)
		}
		time.Sleep(500 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "gave up waiting for completion")
	os.Exit(1)
}

type transferStatus struct {
	ReferenceID   string `json:"reference_id"`
	Phase         string `json:"phase"`
	WithdrawTxID  string `json:"withdraw_tx_id"`
	DepositTxID   string `json:"deposit_tx_id"`
	FailureReason string `json:"failure_reason"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func start(addr, sender, recipient string, amount int64, reference string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"sender":       sender,
		"recipient":    recipient,
		"amount":       amount,
		"reference_id": reference,
	})
	var st transferStatus
	if err := call(http.MethodPost, addr+"/api/v1/transfers", body, &st); err != nil {
		return "", err
	}
	return st.ReferenceID, nil
}

func status(addr, referenceID string) (*transferStatus, error) {
	var st transferStatus
	if err := call(http.MethodGet, addr+"/api/v1/transfers/"+referenceID, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func approve(addr, referenceID, manager string) error {
	body, _ := json.Marshal(map[string]string{"manager": manager})
	return call(http.MethodPost, addr+"/api/v1/transfers/"+referenceID+"/approve", body, nil)
}

func call(method, url string, body []byte, data any) error {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if data != nil {
		return json.Unmarshal(env.Data, data)
	}
	return nil
}
