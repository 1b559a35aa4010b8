package accounts_test

import (
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func rels(links []accounts.Link) map[string]string {
	out := map[string]string{}
	for _, l := range links {
		out[l.Rel] = l.Href
	}
	return out
}

func TestAccountLinks(t *testing.T) {
	id := uuid.MustParse("6f1c1f1e-4a57-4d3c-9f0a-0d6c0b6b8a11")
	links := accounts.AccountLinks("http://api.test/", id)

	assert.Len(t, links, 3)
	assert.Equal(t, "http://api.test/users/"+id.String(), rels(links)["self"])
	assert.Equal(t, "DELETE", links[2].Method)
}

func TestPaginationLinks(t *testing.T) {
	t.Run("first page", func(t *testing.T) {
		links := rels(accounts.PaginationLinks("http://api.test", "/users/", 0, 10, 25))
		assert.Equal(t, "http://api.test/users/?limit=10&skip=0", links["self"])
		assert.Equal(t, "http://api.test/users/?limit=10&skip=10", links["next"])
		assert.Equal(t, "http://api.test/users/?limit=10&skip=20", links["last"])
		assert.NotContains(t, links, "prev")
	})

	t.Run("middle page", func(t *testing.T) {
		links := rels(accounts.PaginationLinks("http://api.test", "/users/", 10, 10, 25))
		assert.Equal(t, "http://api.test/users/?limit=10&skip=0", links["prev"])
		assert.Equal(t, "http://api.test/users/?limit=10&skip=20", links["next"])
	})

	t.Run("last page", func(t *testing.T) {
		links := rels(accounts.PaginationLinks("http://api.test", "/users/", 20, 10, 25))
		assert.NotContains(t, links, "next")
		assert.Equal(t, "http://api.test/users/?limit=10&skip=10", links["prev"])
	})

	t.Run("empty collection", func(t *testing.T) {
		links := rels(accounts.PaginationLinks("http://api.test", "/users/", 0, 10, 0))
		assert.Equal(t, links["first"], links["last"])
		assert.NotContains(t, links, "next")
	})
}
