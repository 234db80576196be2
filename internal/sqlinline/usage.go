package sqlinline

const QInsertUsageEvent = `--sql 7c2f8a41-9d3e-4b6a-8f1d-2a5c9e7b4d10
insert into usage_events(id, request_id, model, country, success, status_code, latency_ms, created_at)
values (gen_random_uuid(), $1::text, $2::text, $3::text, $4::boolean, $5::int, $6::int, now());
`
