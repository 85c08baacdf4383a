// Package validator talks to a W3C Nu HTML Checker over HTTP.
//
// Markup is POSTed to <endpoint>?out=json with content type
// "text/html; charset=UTF-8"; the response's messages array is returned as
// model.ValidationMessage values. Any checker that speaks this protocol can
// be used, including a self-hosted vnu.jar instance.
//
// # Usage
//
//	client, err := validator.NewClient(validator.DefaultEndpoint)
//	if err != nil {
//	    return err
//	}
//	msgs, err := client.Validate(ctx, markup)
//	var reqErr *validator.RequestError
//	if errors.As(err, &reqErr) {
//	    // reqErr.StatusCode
//	}
package validator
