package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/arkade-os/swapd/internal/core/application"
	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/pkg/auth"
	"github.com/urfave/cli/v2"
)

var (
	keygenCmd = &cli.Command{
		Name:   "keygen",
		Usage:  "Generate a new signing key and print its account",
		Action: keygenAction,
	}
	infoCmd = &cli.Command{
		Name:   "info",
		Usage:  "Get info about the ledger",
		Flags:  []cli.Flag{urlFlag},
		Action: infoAction,
	}
	adminCmd = &cli.Command{
		Name:  "admin",
		Usage: "Manage the ledger configuration (requires the admin key)",
		Subcommands: cli.Commands{
			{
				Name:   "init",
				Usage:  "Set the admin account, only once",
				Flags:  []cli.Flag{urlFlag, accountFlag("the admin account")},
				Action: initAdminAction,
			},
			{
				Name:   "set-operator",
				Usage:  "Set the operator account",
				Flags:  []cli.Flag{urlFlag, keyFlag, accountFlag("the operator account")},
				Action: setOperatorAction,
			},
			{
				Name:   "register-wallet",
				Usage:  "Register a proxy wallet for an output token",
				Flags:  []cli.Flag{urlFlag, keyFlag, walletFlag, tokenFlag(true)},
				Action: registerWalletAction,
			},
			{
				Name:   "set-router",
				Usage:  "Select the swap router",
				Flags:  []cli.Flag{urlFlag, keyFlag, accountFlag("the router account")},
				Action: setRouterAction,
			},
			{
				Name:   "upgrade",
				Usage:  "Record a code upgrade",
				Flags:  []cli.Flag{urlFlag, keyFlag, codeHashFlag},
				Action: upgradeAction,
			},
			{
				Name:   "proxy-wallets",
				Usage:  "List the registered proxy wallets",
				Flags:  []cli.Flag{urlFlag},
				Action: listWalletsAction,
			},
		},
	}
	feesCmd = &cli.Command{
		Name:  "fees",
		Usage: "Get or set deposit fees",
		Subcommands: cli.Commands{
			{
				Name:  "set",
				Usage: "Set the fee of a token, or the global one if no token is given",
				Flags: []cli.Flag{
					urlFlag, keyFlag, accountFlag("the operator account"), tokenFlag(false),
					amountFlag,
				},
				Action: setFeeAction,
			},
			{
				Name:   "get",
				Usage:  "Get the fee applied to a token",
				Flags:  []cli.Flag{urlFlag, tokenFlag(false)},
				Action: getFeeAction,
			},
		},
	}
	requestsCmd = &cli.Command{
		Name:  "requests",
		Usage: "Add, settle and list swap requests",
		Subcommands: cli.Commands{
			{
				Name:  "add",
				Usage: "Record a deposit as a swap request (requires the operator key)",
				Flags: []cli.Flag{
					urlFlag, keyFlag, accountFlag("the operator account"), walletFlag,
					txHashFlag, opIdFlag, destinationFlag(false), tokenFlag(true), amountFlag,
					memoFlag(false),
				},
				Action: addRequestAction,
			},
			{
				Name:  "settle",
				Usage: "Swap a pending request and pay its destination (requires the operator key)",
				Flags: []cli.Flag{
					urlFlag, keyFlag, accountFlag("the operator account"), destinationFlag(true),
					opIdFlag, routeFlag, minOutFlag,
				},
				Action: settleAction,
			},
			{
				Name:   "pending",
				Usage:  "List the pending requests of a destination",
				Flags:  []cli.Flag{urlFlag, destinationFlag(true)},
				Action: pendingAction,
			},
			{
				Name:   "completed",
				Usage:  "List a page of the completed requests of a destination",
				Flags:  []cli.Flag{urlFlag, destinationFlag(true), pageFlag},
				Action: completedAction,
			},
		},
	}
	destinationsCmd = &cli.Command{
		Name:   "destinations",
		Usage:  "List a page of the destinations that ever received a request",
		Flags:  []cli.Flag{urlFlag, pageFlag},
		Action: destinationsAction,
	}
	memosCmd = &cli.Command{
		Name:  "memos",
		Usage: "Generate and resolve deposit memos",
		Subcommands: cli.Commands{
			{
				Name:   "generate",
				Usage:  "Get the memo of a user and token, creating it if needed",
				Flags:  []cli.Flag{urlFlag, userFlag, tokenFlag(true)},
				Action: generateMemoAction,
			},
			{
				Name:   "resolve",
				Usage:  "Get the user and token a memo was issued for",
				Flags:  []cli.Flag{urlFlag, memoFlag(true)},
				Action: resolveMemoAction,
			},
		},
	}
	tokensCmd = &cli.Command{
		Name:  "tokens",
		Usage: "Use the reference token ledger",
		Subcommands: cli.Commands{
			{
				Name:   "balance",
				Usage:  "Get the balance of an account",
				Flags:  []cli.Flag{urlFlag, tokenFlag(true), accountFlag("the account")},
				Action: balanceAction,
			},
			{
				Name:  "approve",
				Usage: "Allow a spender to move the funds of the signer",
				Flags: []cli.Flag{
					urlFlag, keyFlag, tokenFlag(true), ownerFlag, spenderFlag, amountFlag,
				},
				Action: approveAction,
			},
			{
				Name:   "mint",
				Usage:  "Mint tokens to an account (requires the admin key)",
				Flags:  []cli.Flag{urlFlag, keyFlag, tokenFlag(true), accountFlag("the recipient"), amountFlag},
				Action: mintAction,
			},
		},
	}
)

func keygenAction(_ *cli.Context) error {
	key, err := auth.NewPrivateKey()
	if err != nil {
		return err
	}
	return printJSON(mustJSON(map[string]string{
		"private_key": fmt.Sprintf("%x", key.Serialize()),
		"account":     auth.PubKey(key),
	}))
}

func infoAction(ctx *cli.Context) error {
	resp, err := get(endpoint(ctx, "/v1/info", nil))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func initAdminAction(ctx *cli.Context) error {
	resp, err := post(endpoint(ctx, "/v1/admin/init", nil), map[string]string{
		"admin": ctx.String(accountFlagName),
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func setOperatorAction(ctx *cli.Context) error {
	args := application.SetOperatorArgs{
		Operator: domain.AccountId(ctx.String(accountFlagName)),
	}
	resp, err := postSigned(ctx, "/v1/admin/operator", application.OpSetOperator, args)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func registerWalletAction(ctx *cli.Context) error {
	args := application.RegisterProxyWalletArgs{
		Wallet: domain.AccountId(ctx.String(walletFlagName)),
		Token:  domain.TokenId(ctx.String(tokenFlagName)),
	}
	resp, err := postSigned(
		ctx, "/v1/admin/proxy-wallets", application.OpRegisterProxyWallet, args,
	)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func setRouterAction(ctx *cli.Context) error {
	args := application.SetSwapRouterArgs{
		Router: domain.AccountId(ctx.String(accountFlagName)),
	}
	resp, err := postSigned(ctx, "/v1/admin/swap-router", application.OpSetSwapRouter, args)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func upgradeAction(ctx *cli.Context) error {
	args := application.UpgradeArgs{CodeHash: ctx.String(codeHashFlagName)}
	resp, err := postSigned(ctx, "/v1/admin/upgrade", application.OpUpgrade, args)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func listWalletsAction(ctx *cli.Context) error {
	resp, err := get(endpoint(ctx, "/v1/proxy-wallets", nil))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func setFeeAction(ctx *cli.Context) error {
	amount, err := domain.ParseAmount(ctx.String(amountFlagName))
	if err != nil {
		return err
	}
	args := application.SetFeeArgs{
		Operator: domain.AccountId(ctx.String(accountFlagName)),
		Token:    domain.TokenId(ctx.String(tokenFlagName)),
		Amount:   amount,
	}
	resp, err := postSigned(ctx, "/v1/fees", application.OpSetFee, args)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func getFeeAction(ctx *cli.Context) error {
	path := "/v1/fees"
	if token := ctx.String(tokenFlagName); token != "" {
		path += "/" + url.PathEscape(token)
	}
	resp, err := get(endpoint(ctx, path, nil))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func addRequestAction(ctx *cli.Context) error {
	txHash, err := domain.ParseTxHash(ctx.String(txHashFlagName))
	if err != nil {
		return err
	}
	opId, err := domain.ParseOpId(ctx.String(opIdFlagName))
	if err != nil {
		return err
	}
	amount, err := domain.ParseAmount(ctx.String(amountFlagName))
	if err != nil {
		return err
	}
	args := application.AddRequestArgs{
		Operator:    domain.AccountId(ctx.String(accountFlagName)),
		Wallet:      domain.AccountId(ctx.String(walletFlagName)),
		TxHash:      txHash,
		OpId:        opId,
		Destination: domain.AccountId(ctx.String(destinationFlagName)),
		TokenIn:     domain.TokenId(ctx.String(tokenFlagName)),
		AmountIn:    amount,
		Memo:        domain.Memo(ctx.String(memoFlagName)),
	}
	resp, err := postSigned(ctx, "/v1/requests", application.OpAddRequest, args)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func settleAction(ctx *cli.Context) error {
	opId, err := domain.ParseOpId(ctx.String(opIdFlagName))
	if err != nil {
		return err
	}
	var route domain.Route
	if err := json.Unmarshal([]byte(ctx.String(routeFlagName)), &route); err != nil {
		return fmt.Errorf("invalid route: %s", err)
	}
	minOut, err := domain.ParseAmount(ctx.String(minOutFlagName))
	if err != nil {
		return err
	}
	args := application.SettleArgs{
		Operator:    domain.AccountId(ctx.String(accountFlagName)),
		Destination: domain.AccountId(ctx.String(destinationFlagName)),
		OpId:        opId,
		Route:       route,
		MinOut:      minOut,
	}
	resp, err := postSigned(ctx, "/v1/requests/settle", application.OpSettle, args)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func pendingAction(ctx *cli.Context) error {
	path := fmt.Sprintf(
		"/v1/destinations/%s/requests", url.PathEscape(ctx.String(destinationFlagName)),
	)
	resp, err := get(endpoint(ctx, path, nil))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func completedAction(ctx *cli.Context) error {
	path := fmt.Sprintf(
		"/v1/destinations/%s/completed", url.PathEscape(ctx.String(destinationFlagName)),
	)
	resp, err := get(endpoint(ctx, path, pageQuery(ctx)))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func destinationsAction(ctx *cli.Context) error {
	resp, err := get(endpoint(ctx, "/v1/destinations", pageQuery(ctx)))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func generateMemoAction(ctx *cli.Context) error {
	resp, err := post(endpoint(ctx, "/v1/memos", nil), map[string]string{
		"user":  ctx.String(userFlagName),
		"token": ctx.String(tokenFlagName),
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func resolveMemoAction(ctx *cli.Context) error {
	path := "/v1/memos/" + url.PathEscape(ctx.String(memoFlagName))
	resp, err := get(endpoint(ctx, path, nil))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func balanceAction(ctx *cli.Context) error {
	path := fmt.Sprintf(
		"/v1/tokens/%s/balances/%s",
		url.PathEscape(ctx.String(tokenFlagName)), url.PathEscape(ctx.String(accountFlagName)),
	)
	resp, err := get(endpoint(ctx, path, nil))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func approveAction(ctx *cli.Context) error {
	amount, err := domain.ParseAmount(ctx.String(amountFlagName))
	if err != nil {
		return err
	}
	owner := ctx.String(ownerFlagName)
	if owner == "" {
		key, err := signingKey(ctx)
		if err != nil {
			return err
		}
		owner = auth.PubKey(key)
	}
	token := ctx.String(tokenFlagName)
	args := application.ApproveArgs{
		Token:   domain.TokenId(token),
		Owner:   domain.AccountId(owner),
		Spender: domain.AccountId(ctx.String(spenderFlagName)),
		Amount:  amount,
	}
	path := fmt.Sprintf("/v1/tokens/%s/approve", url.PathEscape(token))
	resp, err := postSigned(ctx, path, application.OpApprove, args)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func mintAction(ctx *cli.Context) error {
	amount, err := domain.ParseAmount(ctx.String(amountFlagName))
	if err != nil {
		return err
	}
	token := ctx.String(tokenFlagName)
	args := application.MintArgs{
		Token:  domain.TokenId(token),
		To:     domain.AccountId(ctx.String(accountFlagName)),
		Amount: amount,
	}
	path := fmt.Sprintf("/v1/tokens/%s/mint", url.PathEscape(token))
	resp, err := postSigned(ctx, path, application.OpMint, args)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func pageQuery(ctx *cli.Context) url.Values {
	return url.Values{"page": {strconv.FormatUint(uint64(ctx.Uint(pageFlagName)), 10)}}
}

func mustJSON(v any) json.RawMessage {
	// nolint
	buf, _ := json.Marshal(v)
	return buf
}
