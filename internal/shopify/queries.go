package shopify

// OrdersQuery pages orders by last update, oldest first.
// $query carries the updated_at lower bound, e.g. "updated_at:>='2024-01-01T00:00:00Z'".
const OrdersQuery = `
query getOrders($first: Int!, $after: String, $query: String) {
  orders(first: $first, after: $after, query: $query, sortKey: UPDATED_AT) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      node {
        id
        legacyResourceId
        name
        email
        createdAt
        updatedAt
        cancelledAt
        displayFulfillmentStatus
        displayFinancialStatus
        currencyCode
        subtotalPriceSet {
          shopMoney {
            amount
          }
        }
        totalTaxSet {
          shopMoney {
            amount
          }
        }
        totalShippingPriceSet {
          shopMoney {
            amount
          }
        }
        totalPriceSet {
          shopMoney {
            amount
            currencyCode
          }
        }
        customer {
          firstName
          lastName
          email
        }
        shippingAddress {
          address1
          address2
          city
          province
          zip
          countryCodeV2
        }
        lineItems(first: 100) {
          edges {
            node {
              title
              quantity
              sku
              variantTitle
              originalUnitPriceSet {
                shopMoney {
                  amount
                }
              }
            }
          }
        }
        fulfillments {
          displayStatus
          trackingInfo {
            number
            company
          }
        }
      }
    }
  }
}
`
