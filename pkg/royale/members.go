package royale

import (
	"context"
	"fmt"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
)

// Members fetches the clan roster. Rows without a tag are dropped.
func (c *Client) Members(ctx context.Context, clanTag string) ([]types.Member, error) {
	var raw memberListResponse
	path := fmt.Sprintf(clanMembersPath, encodeTag(clanTag))
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}

	members := make([]types.Member, 0, len(raw.Items))
	for _, item := range raw.Items {
		m := decodeMember(item)
		if m.Tag == "" {
			continue
		}
		members = append(members, m)
	}
	return members, nil
}
