// Package filter hides validator messages the user is not interested in.
//
// A State lists hidden message kinds and hidden message texts. Apply
// evaluates a State against grouped messages without modifying them, and
// Store persists the State between runs under a single fixed key.
//
// # Usage
//
//	store := filter.NewStore(db)
//	st := store.Load(ctx).HideType("info")
//	if err := store.Save(ctx, st); err != nil {
//	    return err
//	}
//	result := filter.Apply(groups, st)
//	fmt.Println(filter.HiddenLabel(result.Hidden()))
package filter
