package sdk

import "github.com/celerix-dev/intern-connect/pkg/schema"

// ResolvePayload unwraps the {data: {...}} envelope some deployments put
// around auth responses. When data is an object it wins over the top level,
// even if both carry a user.
func ResolvePayload(body schema.Payload) schema.Payload {
	if body == nil {
		return schema.Payload{}
	}
	if inner := body.Object("data"); inner != nil {
		return inner
	}
	return body
}

// identityFrom returns the identity record carried by a resolved payload:
// its user object when present, otherwise the payload itself.
func identityFrom(p schema.Payload) schema.User {
	if u := p.Object("user"); u != nil {
		return schema.User(u)
	}
	if len(p) == 0 {
		return nil
	}
	return schema.User(p)
}
