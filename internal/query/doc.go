// Package query defines the request side of compilation: filters, sort
// orders and pagination, independent of any storage dialect.
//
// A Filter maps logical column names to an Operation. Operations are
// conjunctive; there is no OR. Sort keys are ordered and applied in sequence.
// Requests can be written as YAML documents:
//
//	model: User
//	views: [detail]
//	filter:
//	  age: {op: between, value: [18, 30]}
//	  id: {op: in, value: ["507f1f77bcf86cd799439011"]}
//	sort:
//	  - {column: lastName, order: desc}
//	page: {start: 0, count: 20}
package query
