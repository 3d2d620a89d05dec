package gateway

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// Envelope carries the decoded contents of a Bios-Crypto header: the
// symmetric key/iv the body was encrypted with, plus the content digest
// and optional client public key the asymmetric wrapper protected. No
// maintained GM/T (SM2/SM4) cipher-suite implementation exists for Go;
// this package implements the RSA+AES-256-CBC half of the envelope only.
type Envelope struct {
	BodyDigest string // hex sha256 of the plaintext body
	SymKey     []byte
	SymIV      []byte
	ClientPub  string // present only when the caller expects need_crypto_resp
}

// EncryptEnvelope builds the Bios-Crypto header value and the
// symmetric-encrypted body for an outbound request/response:
// base64(RSA_OAEP(serverPub, "<sha256-hex-of-body> <key-hex> <iv-hex>[ <client-pub>]")).
func EncryptEnvelope(serverPub *rsa.PublicKey, body []byte, clientPub string) (header string, cipherBody []byte, err error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", nil, iamerr.Wrap(iamerr.KindInternal, "gateway", "crypto-envelope", "generating symmetric key", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", nil, iamerr.Wrap(iamerr.KindInternal, "gateway", "crypto-envelope", "generating iv", err)
	}

	cipherBody, err = aesCBCEncrypt(key, iv, body)
	if err != nil {
		return "", nil, err
	}

	digest := sha256.Sum256(body)
	payload := fmt.Sprintf("%s %s %s", hex.EncodeToString(digest[:]), hex.EncodeToString(key), hex.EncodeToString(iv))
	if clientPub != "" {
		payload += " " + clientPub
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, serverPub, []byte(payload), nil)
	if err != nil {
		return "", nil, iamerr.Wrap(iamerr.KindInternal, "gateway", "crypto-envelope", "wrapping symmetric key", err)
	}
	return base64.StdEncoding.EncodeToString(wrapped), cipherBody, nil
}

// DecryptEnvelope reverses EncryptEnvelope: unwrap the header with the
// server's private key, recover the symmetric key/iv, decrypt the body,
// and verify its digest matches what the sender committed to.
func DecryptEnvelope(serverPriv *rsa.PrivateKey, header string, cipherBody []byte) ([]byte, Envelope, error) {
	wrapped, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, Envelope{}, iamerr.BadRequest("gateway", "crypto-envelope", "malformed crypto header encoding")
	}

	payload, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, serverPriv, wrapped, nil)
	if err != nil {
		return nil, Envelope{}, iamerr.Unauthorized("gateway", "crypto-envelope", "failed to unwrap crypto envelope")
	}

	fields := strings.SplitN(string(payload), " ", 4)
	if len(fields) < 3 {
		return nil, Envelope{}, iamerr.BadRequest("gateway", "crypto-envelope", "malformed crypto envelope payload")
	}
	env := Envelope{BodyDigest: fields[0]}
	env.SymKey, err = hex.DecodeString(fields[1])
	if err != nil {
		return nil, Envelope{}, iamerr.BadRequest("gateway", "crypto-envelope", "malformed symmetric key")
	}
	env.SymIV, err = hex.DecodeString(fields[2])
	if err != nil {
		return nil, Envelope{}, iamerr.BadRequest("gateway", "crypto-envelope", "malformed iv")
	}
	if len(fields) == 4 {
		env.ClientPub = fields[3]
	}

	body, err := aesCBCDecrypt(env.SymKey, env.SymIV, cipherBody)
	if err != nil {
		return nil, Envelope{}, err
	}

	digest := sha256.Sum256(body)
	if hex.EncodeToString(digest[:]) != env.BodyDigest {
		return nil, Envelope{}, iamerr.Unauthorized("gateway", "crypto-envelope", "body digest mismatch")
	}

	return body, env, nil
}

func aesCBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "gateway", "crypto-envelope", "constructing cipher", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func aesCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "gateway", "crypto-envelope", "constructing cipher", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, iamerr.BadRequest("gateway", "crypto-envelope", "ciphertext is not a multiple of the block size")
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, iamerr.BadRequest("gateway", "crypto-envelope", "empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, iamerr.BadRequest("gateway", "crypto-envelope", "invalid padding")
	}
	return data[:len(data)-padLen], nil
}
