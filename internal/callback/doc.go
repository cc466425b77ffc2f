// Package callback provides the short-lived local HTTP server that receives
// the provider's redirect at the end of user consent and hands the
// oauth_verifier to the waiting OAuth flow.
//
//	l := callback.New(callback.DefaultPath)
//	if err := l.Start(ctx, "127.0.0.1:5001"); err != nil {
//		return err
//	}
//	defer l.Shutdown(context.Background())
//	verifier, err := l.Wait(ctx)
package callback
