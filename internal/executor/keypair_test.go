package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	smithy "github.com/aws/smithy-go"
)

type fakeKeyPairAPI struct {
	mu            sync.Mutex
	describeCalls int
	importCalls   int
	describeErr   error
	importErr     error
}

func (f *fakeKeyPairAPI) DescribeKeyPairs(ctx context.Context, in *ec2.DescribeKeyPairsInput, opts ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	f.mu.Lock()
	f.describeCalls++
	f.mu.Unlock()
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &ec2.DescribeKeyPairsOutput{}, nil
}

func (f *fakeKeyPairAPI) ImportKeyPair(ctx context.Context, in *ec2.ImportKeyPairInput, opts ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error) {
	f.mu.Lock()
	f.importCalls++
	f.mu.Unlock()
	if f.importErr != nil {
		return nil, f.importErr
	}
	return &ec2.ImportKeyPairOutput{}, nil
}

func TestKeyPairCacheEnsureExistingKey(t *testing.T) {
	cache := NewKeyPairCache()
	fake := &fakeKeyPairAPI{}

	if err := cache.Ensure(context.Background(), fake, "us-east-1", "orchestrator-key", []byte("ssh-rsa AAAA")); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if fake.describeCalls != 1 || fake.importCalls != 0 {
		t.Fatalf("expected one describe call and no import, got describe=%d import=%d", fake.describeCalls, fake.importCalls)
	}
}

func TestKeyPairCacheEnsureImportsWhenMissing(t *testing.T) {
	cache := NewKeyPairCache()
	fake := &fakeKeyPairAPI{describeErr: &smithy.GenericAPIError{Code: "InvalidKeyPair.NotFound"}}

	if err := cache.Ensure(context.Background(), fake, "us-east-1", "orchestrator-key", []byte("ssh-rsa AAAA")); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if fake.importCalls != 1 {
		t.Fatalf("expected exactly one import call, got %d", fake.importCalls)
	}
}

func TestKeyPairCacheEnsureOnlyImportsOncePerRegion(t *testing.T) {
	cache := NewKeyPairCache()
	fake := &fakeKeyPairAPI{describeErr: &smithy.GenericAPIError{Code: "InvalidKeyPair.NotFound"}}

	for i := 0; i < 3; i++ {
		if err := cache.Ensure(context.Background(), fake, "us-east-1", "orchestrator-key", []byte("ssh-rsa AAAA")); err != nil {
			t.Fatalf("Ensure call %d: %v", i, err)
		}
	}
	if fake.describeCalls != 1 || fake.importCalls != 1 {
		t.Fatalf("expected the key pair ensured only once, got describe=%d import=%d", fake.describeCalls, fake.importCalls)
	}
}

func TestKeyPairCacheEnsurePropagatesNonNotFoundDescribeError(t *testing.T) {
	cache := NewKeyPairCache()
	boom := errors.New("network unreachable")
	fake := &fakeKeyPairAPI{describeErr: boom}

	err := cache.Ensure(context.Background(), fake, "us-east-1", "orchestrator-key", []byte("ssh-rsa AAAA"))
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped describe error, got %v", err)
	}
	if fake.importCalls != 0 {
		t.Fatalf("expected no import attempt when describe fails for a non-NotFound reason")
	}
}
