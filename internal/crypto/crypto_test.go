package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0000000000000000000000000000000000000000000000000000000000000000"

func TestNew(t *testing.T) {
	t.Run("合法密钥创建成功", func(t *testing.T) {
		c, err := New(testKey)
		assert.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("密钥长度不足报错", func(t *testing.T) {
		_, err := New("00112233")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("非十六进制密钥报错", func(t *testing.T) {
		_, err := New(strings.Repeat("zz", 32))
		assert.Error(t, err)
	})
}

func TestEncryptDecrypt(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	t.Run("加密解密往返一致", func(t *testing.T) {
		ciphertext, err := c.Encrypt("mailbox-password-123")
		require.NoError(t, err)
		assert.NotEmpty(t, ciphertext)
		assert.NotContains(t, ciphertext, "mailbox-password-123")

		plaintext, err := c.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, "mailbox-password-123", plaintext)
	})

	t.Run("相同明文产生不同密文", func(t *testing.T) {
		first, err := c.Encrypt("same-secret")
		require.NoError(t, err)
		second, err := c.Encrypt("same-secret")
		require.NoError(t, err)

		// GCM nonce 随机生成，相同输入也不应产生相同输出
		assert.NotEqual(t, first, second)
	})

	t.Run("空明文往返一致", func(t *testing.T) {
		ciphertext, err := c.Encrypt("")
		require.NoError(t, err)

		plaintext, err := c.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, "", plaintext)
	})
}

func TestDecryptInvalidInputs(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	t.Run("非十六进制密文报错", func(t *testing.T) {
		_, err := c.Decrypt("not-hex!")
		assert.ErrorIs(t, err, ErrInvalidCiphertext)
	})

	t.Run("密文过短报错", func(t *testing.T) {
		_, err := c.Decrypt("0011")
		assert.ErrorIs(t, err, ErrInvalidCiphertext)
	})

	t.Run("密文被篡改报错", func(t *testing.T) {
		ciphertext, err := c.Encrypt("tamper-target")
		require.NoError(t, err)

		// 翻转最后一个字节
		tampered := []byte(ciphertext)
		if tampered[len(tampered)-1] == '0' {
			tampered[len(tampered)-1] = '1'
		} else {
			tampered[len(tampered)-1] = '0'
		}

		_, err = c.Decrypt(string(tampered))
		assert.ErrorIs(t, err, ErrInvalidCiphertext)
	})

	t.Run("不同密钥无法解密", func(t *testing.T) {
		other, err := New(strings.Repeat("11", 32))
		require.NoError(t, err)

		ciphertext, err := c.Encrypt("cross-key")
		require.NoError(t, err)

		_, err = other.Decrypt(ciphertext)
		assert.ErrorIs(t, err, ErrInvalidCiphertext)
	})
}
