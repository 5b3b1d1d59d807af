package supabase

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/quilpalta/alpalo/news"
)

// Objects is the news.ObjectStorage view of a Client.
type Objects struct {
	c *Client
}

// Objects returns the object storage side of the client.
func (c *Client) Objects() *Objects {
	return &Objects{c: c}
}

func objectPath(bucket, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(segs, "/")
}

// Upload implements news.ObjectStorage. x-upsert is false, so a taken key is
// reported as an error by the service rather than overwritten.
func (o *Objects) Upload(ctx context.Context, bucket, key string, data []byte, opts news.UploadOptions) error {
	req, err := o.c.newRequest(ctx, http.MethodPost, "/storage/v1/object/"+objectPath(bucket, key), nil, bytes.NewReader(data))
	if err != nil {
		return err
	}
	ct := opts.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	req.Header.Set("Content-Type", ct)
	cc := opts.CacheControl
	if cc == "" {
		cc = "max-age=3600"
	}
	req.Header.Set("Cache-Control", cc)
	req.Header.Set("x-upsert", "false")
	req.ContentLength = int64(len(data))
	return o.c.do(req, nil)
}

// PublicURL implements news.ObjectStorage. The URL is derived locally; the
// bucket must be public for it to resolve.
func (o *Objects) PublicURL(bucket, key string) string {
	return o.c.baseURL + "/storage/v1/object/public/" + objectPath(bucket, key)
}
