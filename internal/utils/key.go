package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidKeyHash = errors.New("invalid key hash format")

// KeyHashConfig Argon2配置
type KeyHashConfig struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
}

// DefaultKeyHashConfig 默认配置
var DefaultKeyHashConfig = &KeyHashConfig{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
}

// HashKey 哈希操作员密钥
func HashKey(key string) (string, error) {
	return HashKeyWithConfig(key, DefaultKeyHashConfig)
}

// HashKeyWithConfig 使用指定配置哈希密钥
func HashKeyWithConfig(key string, config *KeyHashConfig) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(key), salt, config.Time, config.Memory, config.Threads, config.KeyLen)

	// 编码格式: $argon2id$v=19$m=65536,t=1,p=4$salt$hash
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, config.Memory, config.Time, config.Threads, b64Salt, b64Hash), nil
}

// VerifyKey 校验操作员密钥
func VerifyKey(key, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidKeyHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrInvalidKeyHash
	}
	if version != argon2.Version {
		return false, ErrInvalidKeyHash
	}

	config := &KeyHashConfig{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&config.Memory, &config.Time, &config.Threads); err != nil {
		return false, ErrInvalidKeyHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidKeyHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, ErrInvalidKeyHash
	}
	config.KeyLen = uint32(len(expected))

	actual := argon2.IDKey([]byte(key), salt, config.Time, config.Memory, config.Threads, config.KeyLen)

	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}
