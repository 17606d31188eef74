package main

import (
	"fmt"

	"github.com/arkade-os/swapd/internal/config"
	"github.com/urfave/cli/v2"
)

const (
	urlFlagName         = "url"
	keyFlagName         = "key"
	accountFlagName     = "account"
	walletFlagName      = "wallet"
	tokenFlagName       = "token"
	amountFlagName      = "amount"
	destinationFlagName = "destination"
	opIdFlagName        = "op-id"
	txHashFlagName      = "tx-hash"
	memoFlagName        = "memo"
	routeFlagName       = "route"
	minOutFlagName      = "min-out"
	pageFlagName        = "page"
	userFlagName        = "user"
	ownerFlagName       = "owner"
	spenderFlagName     = "spender"
	codeHashFlagName    = "code-hash"
)

var (
	urlFlag = &cli.StringFlag{
		Name:  urlFlagName,
		Usage: "the url where to reach swapd",
		Value: fmt.Sprintf("http://127.0.0.1:%d", config.DefaultPort),
	}
	keyFlag = &cli.StringFlag{
		Name:  keyFlagName,
		Usage: "hex private key signing the request, defaults to $SWAPD_KEY",
	}
	accountFlag = func(usage string) *cli.StringFlag {
		return &cli.StringFlag{
			Name:     accountFlagName,
			Usage:    usage,
			Required: true,
		}
	}
	walletFlag = &cli.StringFlag{
		Name:     walletFlagName,
		Usage:    "the proxy wallet account",
		Required: true,
	}
	tokenFlag = func(required bool) *cli.StringFlag {
		return &cli.StringFlag{
			Name:     tokenFlagName,
			Usage:    "the token id",
			Required: required,
		}
	}
	amountFlag = &cli.StringFlag{
		Name:     amountFlagName,
		Usage:    "the amount in token base units",
		Required: true,
	}
	destinationFlag = func(required bool) *cli.StringFlag {
		return &cli.StringFlag{
			Name:     destinationFlagName,
			Usage:    "the destination account",
			Required: required,
		}
	}
	opIdFlag = &cli.StringFlag{
		Name:     opIdFlagName,
		Usage:    "the operation id (decimal, up to 128 bits)",
		Required: true,
	}
	txHashFlag = &cli.StringFlag{
		Name:     txHashFlagName,
		Usage:    "the hex hash of the deposit transaction",
		Required: true,
	}
	memoFlag = func(required bool) *cli.StringFlag {
		return &cli.StringFlag{
			Name:     memoFlagName,
			Usage:    "the deposit memo",
			Required: required,
		}
	}
	routeFlag = &cli.StringFlag{
		Name:     routeFlagName,
		Usage:    `the route as json, eg. [{"tokens":["a","b"],"pool_id":"<hex>","token_out":"b"}]`,
		Required: true,
	}
	minOutFlag = &cli.StringFlag{
		Name:  minOutFlagName,
		Usage: "the minimum amount to receive",
		Value: "0",
	}
	pageFlag = &cli.UintFlag{
		Name:  pageFlagName,
		Usage: "the page to fetch",
	}
	userFlag = &cli.StringFlag{
		Name:     userFlagName,
		Usage:    "the user account owning the memo",
		Required: true,
	}
	ownerFlag = &cli.StringFlag{
		Name:  ownerFlagName,
		Usage: "the account granting the allowance, defaults to the signer",
	}
	spenderFlag = &cli.StringFlag{
		Name:     spenderFlagName,
		Usage:    "the account allowed to spend",
		Required: true,
	}
	codeHashFlag = &cli.StringFlag{
		Name:     codeHashFlagName,
		Usage:    "the hash of the code being deployed",
		Required: true,
	}
)
