// Package graphql serves the shipping operations over GraphQL.
//
// The executor is small and covers what schema.graphqls needs: queries and
// mutations on the root fields of that schema, with arguments, variables,
// aliases, fragment spreads, inline fragments and the @skip and @include
// directives. Nested selections are projected from the resolved values;
// only __typename is resolved by name. Introspection (__schema, __type) and
// subscriptions are not served.
package graphql
