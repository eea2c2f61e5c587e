package transport

// Interceptor rewrites the destination of a request before each attempt. The methods
// contain all the JSON-RPC methods in the request, one for single request.
type Interceptor interface {
	Intercept(endpoint Endpoint, methods []string) Endpoint
}

// InterceptorFunc adapts a function into an Interceptor.
type InterceptorFunc func(endpoint Endpoint, methods []string) Endpoint

func (f InterceptorFunc) Intercept(endpoint Endpoint, methods []string) Endpoint {
	return f(endpoint, methods)
}

type privateRelayInterceptor struct {
	relay   Endpoint
	methods map[string]struct{}
}

// NewPrivateRelayInterceptor redirects requests to a privacy-preserving relay, if all
// the methods of request are relay methods. Defaults to eth_sendRawTransaction.
func NewPrivateRelayInterceptor(relay Endpoint, methods ...string) Interceptor {
	if len(methods) == 0 {
		methods = []string{"eth_sendRawTransaction"}
	}

	interceptor := privateRelayInterceptor{
		relay:   relay,
		methods: make(map[string]struct{}, len(methods)),
	}

	for _, v := range methods {
		interceptor.methods[v] = struct{}{}
	}

	return &interceptor
}

func (i *privateRelayInterceptor) Intercept(endpoint Endpoint, methods []string) Endpoint {
	if len(methods) == 0 {
		return endpoint
	}

	for _, v := range methods {
		if _, ok := i.methods[v]; !ok {
			return endpoint
		}
	}

	return i.relay
}
