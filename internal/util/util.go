// Package util provides content hashing and the front matter format of section files.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"
)

var ErrNoFrontMatter = errors.New("invalid front matter format")

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// FrontMatter is the TOML header of a section file pushed from disk.
type FrontMatter struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Title    string `toml:"title"`
	Type     string `toml:"type"`
	IsArabic bool   `toml:"isArabic"`
	// Language "ar" is shorthand for isArabic = true.
	Language string `toml:"language"`
}

const frontMatterDelimiter = "%%%"

// GetFrontMatter splits a section file into its %%%-delimited TOML header and
// the markdown body that follows it.
func GetFrontMatter(md []byte) (*FrontMatter, []byte, error) {
	md = markdown.NormalizeNewlines(md)
	md = bytes.TrimLeft(md, "\n \t\r")

	delim := []byte(frontMatterDelimiter)
	if !bytes.HasPrefix(md, delim) {
		return nil, nil, ErrNoFrontMatter
	}
	rest := md[len(delim):]

	end := bytes.Index(rest, append([]byte("\n"), delim...))
	if end == -1 {
		return nil, nil, ErrNoFrontMatter
	}
	header := rest[:end]
	body := rest[end+1+len(delim):]
	body = bytes.TrimLeft(body, "\n")

	info := &FrontMatter{}
	if _, err := toml.Decode(string(header), info); err != nil {
		return nil, nil, fmt.Errorf("failed to decode front matter: %w", err)
	}
	if strings.EqualFold(info.Language, "ar") {
		info.IsArabic = true
	}
	return info, body, nil
}
