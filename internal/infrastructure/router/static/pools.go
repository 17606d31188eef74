package staticrouter

import (
	"fmt"
	"os"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/pelletier/go-toml/v2"
)

const maxFeeBps = 10000

// PoolConfig seeds a pool the first time the router starts on a store.
type PoolConfig struct {
	Id       string   `toml:"id"`
	Tokens   []string `toml:"tokens"`
	Reserves []string `toml:"reserves"`
	FeeBps   uint32   `toml:"fee_bps"`
}

type poolsFile struct {
	Pools []PoolConfig `toml:"pools"`
}

// LoadPools reads the [[pools]] tables of a TOML file.
func LoadPools(path string) ([]PoolConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pools file: %w", err)
	}
	return ParsePools(buf)
}

func ParsePools(buf []byte) ([]PoolConfig, error) {
	var file poolsFile
	if err := toml.Unmarshal(buf, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pools file: %w", err)
	}
	for i, pool := range file.Pools {
		if _, err := pool.parse(); err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
	}
	return file.Pools, nil
}

type parsedPool struct {
	id       domain.PoolId
	tokens   []domain.TokenId
	reserves []domain.Amount
	feeBps   uint32
}

func (c PoolConfig) parse() (*parsedPool, error) {
	id, err := domain.ParsePoolId(c.Id)
	if err != nil {
		return nil, err
	}
	if len(c.Tokens) != 2 {
		return nil, fmt.Errorf("expected 2 tokens, got %d", len(c.Tokens))
	}
	if c.Tokens[0] == c.Tokens[1] || c.Tokens[0] == "" || c.Tokens[1] == "" {
		return nil, fmt.Errorf("invalid token pair %v", c.Tokens)
	}
	if len(c.Reserves) != len(c.Tokens) {
		return nil, fmt.Errorf("expected %d reserves, got %d", len(c.Tokens), len(c.Reserves))
	}
	if c.FeeBps >= maxFeeBps {
		return nil, fmt.Errorf("fee must be below %d bps", maxFeeBps)
	}

	pool := &parsedPool{id: id, feeBps: c.FeeBps}
	for i, token := range c.Tokens {
		reserve, err := domain.ParseAmount(c.Reserves[i])
		if err != nil {
			return nil, err
		}
		if !reserve.IsPositive() {
			return nil, fmt.Errorf("reserve of %s must be positive", token)
		}
		pool.tokens = append(pool.tokens, domain.TokenId(token))
		pool.reserves = append(pool.reserves, reserve)
	}
	return pool, nil
}
