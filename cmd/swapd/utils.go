package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/arkade-os/swapd/pkg/auth"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

type signedRequest struct {
	Args  any         `json:"args"`
	Proof *auth.Proof `json:"proof"`
}

func endpoint(ctx *cli.Context, path string, query url.Values) string {
	u := strings.TrimSuffix(ctx.String(urlFlagName), "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// signingKey reads the private key from --key, falling back to $SWAPD_KEY.
func signingKey(ctx *cli.Context) (*btcec.PrivateKey, error) {
	key := ctx.String(keyFlagName)
	if key == "" {
		key = viper.GetString(keyFlagName)
	}
	if key == "" {
		return nil, fmt.Errorf("missing signing key, use --%s or SWAPD_KEY", keyFlagName)
	}
	return auth.ParsePrivateKey(key)
}

// postSigned signs args for operation with the key of the caller and the
// next nonce of that key, and posts them to path.
func postSigned(ctx *cli.Context, path, operation string, args any) (json.RawMessage, error) {
	key, err := signingKey(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := get(endpoint(ctx, "/v1/nonces/"+auth.PubKey(key), nil))
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	var nonce struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(resp, &nonce); err != nil {
		return nil, fmt.Errorf("failed to parse nonce: %w", err)
	}
	proof, err := auth.Sign(key, operation, nonce.Nonce+1, args)
	if err != nil {
		return nil, err
	}
	return post(endpoint(ctx, path, nil), signedRequest{args, proof})
}

func post(url string, body any) (json.RawMessage, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("POST", url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	return do(req)
}

func get(url string) (json.RawMessage, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	return do(req)
}

func do(req *http.Request) (json.RawMessage, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	// nolint
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, buf)
	}
	return buf, nil
}

func printJSON(resp json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, resp, "", "\t"); err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}
