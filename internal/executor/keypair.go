package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	smithy "github.com/aws/smithy-go"
)

// KeyPairAPI is the narrow EC2 subset keypair import needs.
type KeyPairAPI interface {
	DescribeKeyPairs(ctx context.Context, in *ec2.DescribeKeyPairsInput, opts ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
	ImportKeyPair(ctx context.Context, in *ec2.ImportKeyPairInput, opts ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error)
}

// KeyPairCache guarantees exactly one import attempt per region per
// session: a cross-goroutine lock around ensureKeyPair(region), keyed by
// region so imports against different regions still proceed concurrently.
type KeyPairCache struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	ensured map[string]bool
}

// NewKeyPairCache builds an empty cache, one per session.
func NewKeyPairCache() *KeyPairCache {
	return &KeyPairCache{locks: make(map[string]*sync.Mutex), ensured: make(map[string]bool)}
}

func (c *KeyPairCache) regionLock(region string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[region]
	if !ok {
		l = &sync.Mutex{}
		c.locks[region] = l
	}
	return l
}

// Ensure imports keyName/publicKeyMaterial into region exactly once per
// session, even under concurrent callers racing on the same region.
func (c *KeyPairCache) Ensure(ctx context.Context, client KeyPairAPI, region, keyName string, publicKeyMaterial []byte) error {
	lock := c.regionLock(region)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	already := c.ensured[region]
	c.mu.Unlock()
	if already {
		return nil
	}

	_, err := client.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{KeyNames: []string{keyName}})
	if err == nil {
		c.markEnsured(region)
		return nil
	}
	if !isKeyPairNotFound(err) {
		return fmt.Errorf("describe key pair %s in %s: %w", keyName, region, err)
	}

	_, err = client.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           &keyName,
		PublicKeyMaterial: publicKeyMaterial,
	})
	if err != nil {
		return fmt.Errorf("import key pair %s in %s: %w", keyName, region, err)
	}
	c.markEnsured(region)
	return nil
}

func (c *KeyPairCache) markEnsured(region string) {
	c.mu.Lock()
	c.ensured[region] = true
	c.mu.Unlock()
}

func isKeyPairNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "InvalidKeyPair.NotFound"
	}
	return false
}
